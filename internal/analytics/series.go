package analytics

import (
	"sort"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/statement"
	"github.com/shopspring/decimal"
)

// dailyPoint is one day of the gap-filled cash series.
type dailyPoint struct {
	Date   models.Date
	Change decimal.Decimal
	Cash   decimal.Decimal
}

// filterRows keeps rows dated within [from, to]; nil bounds are open.
func filterRows(rows []statement.Row, from, to *models.Date) []statement.Row {
	out := make([]statement.Row, 0, len(rows))
	for _, r := range rows {
		if from != nil && !from.IsZero() && r.Date.Before(from.Time) {
			continue
		}
		if to != nil && !to.IsZero() && r.Date.After(to.Time) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// dailyCashSeries sums net flow per day over a gap-free calendar and
// accumulates it from the opening balance.
//
// The opening balance is implied by the first row that reports a running
// balance: that balance minus every net amount up to and including the row.
// Without any balance the series starts at zero.
func dailyCashSeries(rows []statement.Row) ([]dailyPoint, error) {
	if len(rows) == 0 {
		return nil, badRequest("No rows after filtering; cannot build series")
	}

	sorted := make([]statement.Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	opening := decimal.Zero
	running := decimal.Zero
	for _, r := range sorted {
		running = running.Add(r.Net())
		if r.Balance != nil {
			opening = r.Balance.Sub(running)
			break
		}
	}

	changes := make(map[string]decimal.Decimal)
	for _, r := range sorted {
		key := r.Date.String()
		changes[key] = changes[key].Add(r.Net())
	}

	first := sorted[0].Date
	last := sorted[len(sorted)-1].Date
	days := first.DaysUntil(last) + 1

	out := make([]dailyPoint, 0, days)
	cash := opening
	for i := 0; i < days; i++ {
		d := first.AddDays(i)
		change := changes[d.String()]
		cash = cash.Add(change)
		out = append(out, dailyPoint{Date: d, Change: change, Cash: cash})
	}
	return out, nil
}

func historyPoints(series []dailyPoint) []models.TimeSeriesPoint {
	out := make([]models.TimeSeriesPoint, len(series))
	for i, p := range series {
		out[i] = models.TimeSeriesPoint{Date: p.Date, Cash: p.Cash}
	}
	return out
}
