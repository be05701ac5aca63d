package dashboard

import (
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
)

// Chart is a shared date axis with three aligned series. A nil entry means
// the series has no value at that date.
type Chart struct {
	Labels   []models.Date      `json:"labels"`
	History  []*decimal.Decimal `json:"history"`
	Forecast []*decimal.Decimal `json:"forecast"`
	WhatIf   []*decimal.Decimal `json:"whatif"`
}

// BuildChart lays the last ChartHistoryPoints history points and every
// forecast point on one axis. The what-if overlay is filled only at dates the
// scenario carries; scenario dates off the axis are ignored.
func BuildChart(history, forecast, scenario []models.TimeSeriesPoint) Chart {
	if len(history) > ChartHistoryPoints {
		history = history[len(history)-ChartHistoryPoints:]
	}
	n := len(history) + len(forecast)
	c := Chart{
		Labels:   make([]models.Date, 0, n),
		History:  make([]*decimal.Decimal, n),
		Forecast: make([]*decimal.Decimal, n),
		WhatIf:   make([]*decimal.Decimal, n),
	}

	index := make(map[string]int, n)
	for i, p := range history {
		c.Labels = append(c.Labels, p.Date)
		c.History[i] = decimalPtr(p.Cash)
		index[p.Date.String()] = i
	}
	for j, p := range forecast {
		i := len(history) + j
		c.Labels = append(c.Labels, p.Date)
		c.Forecast[i] = decimalPtr(p.Cash)
		index[p.Date.String()] = i
	}
	for _, p := range scenario {
		if i, ok := index[p.Date.String()]; ok {
			c.WhatIf[i] = decimalPtr(p.Cash)
		}
	}
	return c
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
