package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, matching the provider's wire format.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultHorizonDays is used when a request omits horizon_days.
const DefaultHorizonDays = 30

// Horizon bounds accepted by the provider.
const (
	MinHorizonDays = 1
	MaxHorizonDays = 120
)

// Days returns a horizon for request literals. A nil horizon means the
// caller left it out; zero is passed on and rejected by the provider.
func Days(n int) *int {
	return &n
}

// TimeSeriesPoint is the cash balance on one calendar day
type TimeSeriesPoint struct {
	Date Date            `json:"date"`
	Cash decimal.Decimal `json:"cash"`
}

// Adjustment is a hypothetical cashflow event applied from Date onward
type Adjustment struct {
	Date  Date            `json:"date"`
	Delta decimal.Decimal `json:"delta"`
	Label *string         `json:"label"`
}

// Drivers breaks net flow down by category and counterparty
type Drivers struct {
	TopInflowsByCategory  map[string]decimal.Decimal `json:"top_inflows_by_category"`
	TopOutflowsByCategory map[string]decimal.Decimal `json:"top_outflows_by_category"`
	TopCounterparties     map[string]decimal.Decimal `json:"top_counterparties"`
}

// Categories merges inflow and outflow categories into one category->net mapping.
func (d Drivers) Categories() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(d.TopInflowsByCategory)+len(d.TopOutflowsByCategory))
	for k, v := range d.TopInflowsByCategory {
		out[k] = v
	}
	for k, v := range d.TopOutflowsByCategory {
		out[k] = out[k].Add(v)
	}
	return out
}

// ForecastRequest is the body of POST /api/forecast
type ForecastRequest struct {
	Branch      string   `json:"branch"`
	FromDate    *Date    `json:"from_date,omitempty"`
	ToDate      *Date    `json:"to_date,omitempty"`
	HorizonDays *int     `json:"horizon_days,omitempty"`
	Files       []string `json:"files,omitempty"`
}

// ForecastResult is the provider's history + forecast series with drivers
type ForecastResult struct {
	Branch   string            `json:"branch"`
	History  []TimeSeriesPoint `json:"history"`
	Forecast []TimeSeriesPoint `json:"forecast"`
	Drivers  Drivers           `json:"drivers"`
}

// SimulationRequest is the body of POST /api/simulate
type SimulationRequest struct {
	Branch       string       `json:"branch"`
	BaseFromDate *Date        `json:"base_from_date,omitempty"`
	BaseToDate   *Date        `json:"base_to_date,omitempty"`
	HorizonDays  *int         `json:"horizon_days,omitempty"`
	Files        []string     `json:"files,omitempty"`
	Adjustments  []Adjustment `json:"adjustments"`
}

// SimulationResult is a base forecast plus the adjusted series
type SimulationResult struct {
	Branch             string            `json:"branch"`
	History            []TimeSeriesPoint `json:"history"`
	ForecastBase       []TimeSeriesPoint `json:"forecast_base"`
	ForecastAdjusted   []TimeSeriesPoint `json:"forecast_adjusted"`
	AppliedAdjustments []Adjustment      `json:"applied_adjustments"`
	Drivers            Drivers           `json:"drivers"`
}

// WhatIfRequest is the scalar preset accepted by POST /api/whatif
type WhatIfRequest struct {
	Branch        string          `json:"branch"`
	HorizonDays   *int            `json:"horizon_days,omitempty"`
	DelayInvoices int             `json:"delay_invoices"`
	EarlySalaries int             `json:"early_salaries"`
	Adjustment    decimal.Decimal `json:"adjustment"`
}

// DashboardRequest is the body of POST /api/dashboard
type DashboardRequest struct {
	ForecastRequest
	WindowDays      int `json:"window_days"`
	DebitWindowDays int `json:"debit_window_days"`
}

// UploadRequest is the multipart body of POST /api/whatif/upload. Branch and
// HorizonDays are the raw form values, passed to the provider unchanged.
type UploadRequest struct {
	Filename    string
	Data        []byte
	Branch      string
	HorizonDays string
}
