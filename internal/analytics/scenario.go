package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
)

// readScenario reads a date,delta[,label] CSV into adjustments. isScenario is
// false when the header lacks those columns, leaving r to be read as a
// statement.
func readScenario(r io.Reader) (adjustments []models.Adjustment, isScenario bool, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, false, nil
	}
	cols := map[string]int{}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, seen := cols[key]; !seen {
			cols[key] = i
		}
	}
	dateCol, hasDate := cols["date"]
	deltaCol, hasDelta := cols["delta"]
	if !hasDate || !hasDelta {
		return nil, false, nil
	}
	labelCol, hasLabel := cols["label"]

	adjustments = []models.Adjustment{}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, true, err
		}
		line, _ := cr.FieldPos(0)
		if blankRecord(record) {
			continue
		}

		date, err := models.ParseDate(cell(record, dateCol))
		if err != nil {
			return nil, true, fmt.Errorf("line %d: %v", line, err)
		}
		raw := strings.ReplaceAll(cell(record, deltaCol), ",", "")
		delta, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, true, fmt.Errorf("line %d: invalid delta %q", line, raw)
		}
		adj := models.Adjustment{Date: date, Delta: delta}
		if hasLabel {
			if label := cell(record, labelCol); label != "" {
				adj.Label = &label
			}
		}
		adjustments = append(adjustments, adj)
	}
	if len(adjustments) == 0 {
		return nil, true, fmt.Errorf("scenario has no adjustments")
	}
	return adjustments, true, nil
}

func cell(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
