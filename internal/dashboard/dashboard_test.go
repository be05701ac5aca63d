package dashboard

import (
	"encoding/json"
	"testing"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(start string, values ...int64) []models.TimeSeriesPoint {
	d, err := models.ParseDate(start)
	if err != nil {
		panic(err)
	}
	out := make([]models.TimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = models.TimeSeriesPoint{Date: d.AddDays(i), Cash: decimal.NewFromInt(v)}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBalances(t *testing.T) {
	tests := []struct {
		name        string
		history     []models.TimeSeriesPoint
		wantBalance string
		wantDelta   string
	}{
		{"empty", nil, "0", "0"},
		{"single point", series("2024-01-01", 500), "500", "0"},
		{"rising", series("2024-01-01", 100, 250, 400), "400", "150"},
		{"falling", series("2024-01-01", 1000, 700), "700", "-300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, CurrentBalance(tt.history).Equal(dec(tt.wantBalance)))
			assert.True(t, DeltaToday(tt.history).Equal(dec(tt.wantDelta)))
		})
	}
}

func TestUpcomingDebits(t *testing.T) {
	drivers := map[string]decimal.Decimal{
		"Rent":     dec("-5000"),
		"Salaries": dec("-12000"),
		"Sales":    dec("8000"),
	}
	assert.Equal(t, "17000", UpcomingDebits(drivers).String())
	assert.True(t, UpcomingDebits(nil).IsZero())
	assert.True(t, UpcomingDebits(map[string]decimal.Decimal{"Sales": dec("1")}).IsZero())
}

func TestDebitOrdersFromDrivers(t *testing.T) {
	cps := map[string]decimal.Decimal{
		"Landlord":  dec("-5000"),
		"Payroll":   dec("-12000"),
		"Customer":  dec("9000"),
		"Insurer":   dec("-450.50"),
		"Telco":     dec("-300"),
		"Security":  dec("-300"),
		"Utilities": dec("-800"),
		"Zero":      dec("0"),
	}

	got := DebitOrdersFromDrivers(cps)
	require.Len(t, got, TopDebitOrders)

	names := make([]string, len(got))
	for i, o := range got {
		names[i] = o.Customer
		assert.False(t, o.Amount.IsNegative(), "amounts are absolute")
	}
	assert.Equal(t, []string{"Payroll", "Landlord", "Utilities", "Insurer", "Security"}, names)
	assert.Empty(t, DebitOrdersFromDrivers(map[string]decimal.Decimal{"Customer": dec("1")}))
}

func TestFilterUnpaid(t *testing.T) {
	due, _ := models.ParseDate("2024-05-01")
	items := []models.InvoiceDue{
		{InvoiceNo: "INV-1", Client: "Acme", Amount: dec("1500"), DueDate: due, DueLabel: "Due in 2 days"},
		{InvoiceNo: "INV-2", Client: "Globex", Amount: dec("200"), DueDate: due, DueLabel: "Due in 2 days"},
	}
	paid := []models.PaidInvoice{{Key: models.InvoiceKey("ACME", &due, "", dec("1500.00"))}}

	got := FilterUnpaid(items, paid)
	require.Len(t, got, 1)
	assert.Equal(t, "INV-2", got[0].InvoiceNo)

	assert.Len(t, FilterUnpaid(items, nil), 2)
}

func TestBuildChart(t *testing.T) {
	history := series("2024-01-01", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	forecast := series("2024-01-13", 13, 14, 15)
	scenario := series("2024-01-14", 100, 101, 102) // last point falls off the axis

	c := BuildChart(history, forecast, scenario)

	require.Len(t, c.Labels, ChartHistoryPoints+3)
	require.Len(t, c.History, len(c.Labels))
	require.Len(t, c.Forecast, len(c.Labels))
	require.Len(t, c.WhatIf, len(c.Labels))

	assert.Equal(t, "2024-01-03", c.Labels[0].String(), "keeps the last 10 history points")
	assert.Equal(t, "2024-01-15", c.Labels[len(c.Labels)-1].String())

	assert.Equal(t, "3", c.History[0].String())
	assert.Nil(t, c.History[ChartHistoryPoints])
	assert.Nil(t, c.Forecast[0])
	assert.Equal(t, "13", c.Forecast[ChartHistoryPoints].String())

	for i := 0; i <= ChartHistoryPoints; i++ {
		assert.Nil(t, c.WhatIf[i], "index %d", i)
	}
	assert.Equal(t, "100", c.WhatIf[ChartHistoryPoints+1].String())
	assert.Equal(t, "101", c.WhatIf[ChartHistoryPoints+2].String())

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"whatif":[null,`)
}

func TestBuildChart_ShortHistory(t *testing.T) {
	c := BuildChart(series("2024-01-01", 1, 2), nil, nil)
	assert.Len(t, c.Labels, 2)
	assert.Nil(t, c.WhatIf[0])
}
