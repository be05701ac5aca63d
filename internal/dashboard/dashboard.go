// Package dashboard derives the secondary figures shown next to a forecast:
// balances, upcoming debits, debit order fallbacks and the aligned chart axis.
package dashboard

import (
	"sort"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
)

const (
	// ChartHistoryPoints is how many trailing history points the chart keeps.
	ChartHistoryPoints = 10
	// TopDebitOrders caps the driver-derived debit order list.
	TopDebitOrders = 5

	estimatedDueLabel = "Estimated from recent debits"
)

// CurrentBalance is the cash of the last history point, zero without history.
func CurrentBalance(history []models.TimeSeriesPoint) decimal.Decimal {
	if len(history) == 0 {
		return decimal.Zero
	}
	return history[len(history)-1].Cash
}

// DeltaToday is the change between the last two history points, zero with fewer than two.
func DeltaToday(history []models.TimeSeriesPoint) decimal.Decimal {
	n := len(history)
	if n < 2 {
		return decimal.Zero
	}
	return history[n-1].Cash.Sub(history[n-2].Cash)
}

// UpcomingDebits sums the absolute values of the negative categories.
func UpcomingDebits(categories map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range categories {
		if v.IsNegative() {
			total = total.Add(v.Abs())
		}
	}
	return total
}

// DebitOrdersFromDrivers lists counterparties with net negative flow, largest
// absolute amount first, capped at TopDebitOrders.
func DebitOrdersFromDrivers(counterparties map[string]decimal.Decimal) []models.DebitOrderDue {
	out := make([]models.DebitOrderDue, 0, len(counterparties))
	for name, v := range counterparties {
		if !v.IsNegative() {
			continue
		}
		out = append(out, models.DebitOrderDue{
			Customer: name,
			Amount:   v.Abs(),
			DueLabel: estimatedDueLabel,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Customer < out[j].Customer
	})
	if len(out) > TopDebitOrders {
		out = out[:TopDebitOrders]
	}
	return out
}

// FilterUnpaid drops invoices whose key matches a paid marker.
func FilterUnpaid(items []models.InvoiceDue, paid []models.PaidInvoice) []models.InvoiceDue {
	if len(paid) == 0 {
		return items
	}
	settled := make(map[string]struct{}, len(paid))
	for _, p := range paid {
		settled[p.Key] = struct{}{}
	}
	out := make([]models.InvoiceDue, 0, len(items))
	for _, item := range items {
		if _, ok := settled[item.Key()]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

// View is everything the dashboard page shows for one branch.
type View struct {
	Branch         string                 `json:"branch"`
	CurrentBalance decimal.Decimal        `json:"current_balance"`
	DeltaToday     decimal.Decimal        `json:"delta_today"`
	UpcomingDebits decimal.Decimal        `json:"upcoming_debits"`
	DebitOrders    []models.DebitOrderDue `json:"debit_orders"`
	InvoicesDue    []models.InvoiceDue    `json:"invoices_due"`
	Chart          Chart                  `json:"chart"`
	Drivers        models.Drivers         `json:"drivers"`
	Insight        *string                `json:"insight"`
}
