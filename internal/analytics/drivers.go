package analytics

import (
	"sort"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/statement"
	"github.com/shopspring/decimal"
)

const (
	topDrivers = 5

	uncategorised       = "Uncategorised"
	unknownCounterparty = "Unknown"
)

type amount struct {
	name  string
	value decimal.Decimal
}

// topDriversOf aggregates net flow by category and counterparty.
// Counterparties are ranked by absolute amount so large payees are kept.
func topDriversOf(rows []statement.Row) models.Drivers {
	byCategory := map[string]decimal.Decimal{}
	byCounterparty := map[string]decimal.Decimal{}
	for _, r := range rows {
		cat := r.Category
		if cat == "" {
			cat = uncategorised
		}
		cp := r.Counterparty
		if cp == "" {
			cp = unknownCounterparty
		}
		byCategory[cat] = byCategory[cat].Add(r.Net())
		byCounterparty[cp] = byCounterparty[cp].Add(r.Net())
	}

	cats := sorted(byCategory, func(a, b amount) bool { return a.value.GreaterThan(b.value) })
	var inflows, outflows []amount
	for _, a := range cats {
		if a.value.IsPositive() {
			inflows = append(inflows, a)
		}
	}
	for i := len(cats) - 1; i >= 0; i-- {
		if cats[i].value.IsNegative() {
			outflows = append(outflows, cats[i])
		}
	}

	cps := sorted(byCounterparty, func(a, b amount) bool { return a.value.Abs().GreaterThan(b.value.Abs()) })

	return models.Drivers{
		TopInflowsByCategory:  toMap(inflows),
		TopOutflowsByCategory: toMap(outflows),
		TopCounterparties:     toMap(cps),
	}
}

func sorted(m map[string]decimal.Decimal, less func(a, b amount) bool) []amount {
	out := make([]amount, 0, len(m))
	for k, v := range m {
		out = append(out, amount{name: k, value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].name < out[j].name
	})
	return out
}

func toMap(list []amount) map[string]decimal.Decimal {
	if len(list) > topDrivers {
		list = list[:topDrivers]
	}
	out := make(map[string]decimal.Decimal, len(list))
	for _, a := range list {
		out[a.name] = a.value.Round(2)
	}
	return out
}
