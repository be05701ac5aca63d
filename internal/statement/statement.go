// Package statement reads branch transaction statements into typed rows.
package statement

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
)

// Column is a logical statement column.
type Column string

const (
	ColDate         Column = "date"
	ColAccount      Column = "account"
	ColDescription  Column = "description"
	ColDebit        Column = "debit"
	ColCredit       Column = "credit"
	ColBalance      Column = "balance"
	ColCategory     Column = "category"
	ColReference    Column = "reference"
	ColCurrency     Column = "currency"
	ColFXRate       Column = "fx_rate"
	ColLatitude     Column = "latitude"
	ColLongitude    Column = "longitude"
	ColCounterparty Column = "counterparty"
)

// RequiredColumns must be present in every statement header.
var RequiredColumns = []Column{ColDate, ColDebit, ColCredit}

// headerAliases maps lower-cased header names to logical columns. The
// reporting-currency columns win over the plain ones when both are present.
var headerAliases = map[string]Column{
	"date":             ColDate,
	"account":          ColAccount,
	"description":      ColDescription,
	"debit_zar":        ColDebit,
	"debit":            ColDebit,
	"credit_zar":       ColCredit,
	"credit":           ColCredit,
	"balance_zar":      ColBalance,
	"balance":          ColBalance,
	"category":         ColCategory,
	"reference":        ColReference,
	"currency":         ColCurrency,
	"fx_to_zar_at_txn": ColFXRate,
	"fx_rate":          ColFXRate,
	"latitude":         ColLatitude,
	"longitude":        ColLongitude,
	"counterparty":     ColCounterparty,
}

var preferred = map[string]bool{
	"debit_zar":   true,
	"credit_zar":  true,
	"balance_zar": true,
}

var dateLayouts = []string{
	models.DateLayout,
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Row is one statement line.
type Row struct {
	Line         int
	Date         models.Date
	Account      string
	Description  string
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Balance      *decimal.Decimal
	Category     string
	Reference    string
	Currency     string
	FXRate       *decimal.Decimal
	Latitude     *float64
	Longitude    *float64
	Counterparty string
}

// Net is credit minus debit.
func (r Row) Net() decimal.Decimal {
	return r.Credit.Sub(r.Debit)
}

// SchemaError reports a header or row that does not fit the statement schema.
type SchemaError struct {
	Line    int
	Column  Column
	Message string
}

func (e *SchemaError) Error() string {
	switch {
	case e.Line > 0 && e.Column != "":
		return fmt.Sprintf("line %d, column %s: %s", e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case e.Column != "":
		return fmt.Sprintf("column %s: %s", e.Column, e.Message)
	default:
		return e.Message
	}
}

// Header maps logical columns to their position in a CSV record.
type Header map[Column]int

// ParseHeader resolves a header record, failing on missing required columns.
func ParseHeader(record []string) (Header, error) {
	h := Header{}
	pref := map[Column]bool{}
	for i, name := range record {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		col, ok := headerAliases[key]
		if !ok {
			continue
		}
		if _, seen := h[col]; seen && (pref[col] || !preferred[key]) {
			continue
		}
		h[col] = i
		pref[col] = preferred[key]
	}
	for _, col := range RequiredColumns {
		if _, ok := h[col]; !ok {
			return nil, &SchemaError{Column: col, Message: "required column is missing"}
		}
	}
	return h, nil
}

// Parse reads a whole statement.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	record, err := cr.Read()
	if err == io.EOF {
		return nil, &SchemaError{Message: "statement is empty"}
	}
	if err != nil {
		return nil, &SchemaError{Line: 1, Message: err.Error()}
	}
	header, err := ParseHeader(record)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &SchemaError{Message: err.Error()}
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}
		row, err := header.row(line, record)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (h Header) row(line int, record []string) (Row, error) {
	row := Row{
		Line:         line,
		Account:      h.text(record, ColAccount),
		Description:  h.text(record, ColDescription),
		Category:     h.text(record, ColCategory),
		Reference:    h.text(record, ColReference),
		Currency:     h.text(record, ColCurrency),
		Counterparty: h.text(record, ColCounterparty),
	}

	raw := h.text(record, ColDate)
	if raw == "" {
		return Row{}, &SchemaError{Line: line, Column: ColDate, Message: "date is empty"}
	}
	date, err := parseDate(raw)
	if err != nil {
		return Row{}, &SchemaError{Line: line, Column: ColDate, Message: err.Error()}
	}
	row.Date = date

	if row.Debit, err = h.amount(line, record, ColDebit); err != nil {
		return Row{}, err
	}
	if row.Credit, err = h.amount(line, record, ColCredit); err != nil {
		return Row{}, err
	}
	if row.Balance, err = h.optionalDecimal(line, record, ColBalance); err != nil {
		return Row{}, err
	}
	if row.FXRate, err = h.optionalDecimal(line, record, ColFXRate); err != nil {
		return Row{}, err
	}
	if row.Latitude, err = h.optionalFloat(line, record, ColLatitude); err != nil {
		return Row{}, err
	}
	if row.Longitude, err = h.optionalFloat(line, record, ColLongitude); err != nil {
		return Row{}, err
	}
	return row, nil
}

func (h Header) text(record []string, col Column) string {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

// amount parses a debit/credit cell; an empty cell means nothing moved on that side.
func (h Header) amount(line int, record []string, col Column) (decimal.Decimal, error) {
	d, err := h.optionalDecimal(line, record, col)
	if err != nil {
		return decimal.Zero, err
	}
	if d == nil {
		return decimal.Zero, nil
	}
	return *d, nil
}

func (h Header) optionalDecimal(line int, record []string, col Column) (*decimal.Decimal, error) {
	raw := strings.ReplaceAll(h.text(record, col), ",", "")
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, &SchemaError{Line: line, Column: col, Message: fmt.Sprintf("invalid number %q", raw)}
	}
	return &d, nil
}

func (h Header) optionalFloat(line int, record []string, col Column) (*float64, error) {
	raw := h.text(record, col)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &SchemaError{Line: line, Column: col, Message: fmt.Sprintf("invalid number %q", raw)}
	}
	return &f, nil
}

func parseDate(raw string) (models.Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return models.NewDate(t), nil
		}
	}
	return models.Date{}, fmt.Errorf("invalid date %q", raw)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
