// Package analytics is the local forecast provider: it turns branch
// statements into a daily cash series, projects it forward and applies
// scenario adjustments.
package analytics

import (
	"bytes"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/statement"
	"github.com/shopspring/decimal"
)

// UploadBranch names uploaded statements whose file name carries no branch.
const UploadBranch = "upload"

// Engine computes forecasts from the statements in a data directory.
type Engine struct {
	dataDir string
	now     func() time.Time
}

// NewEngine creates an engine reading statements from dataDir.
func NewEngine(dataDir string) *Engine {
	return &Engine{dataDir: dataDir, now: time.Now}
}

func (e *Engine) today() models.Date {
	return models.NewDate(e.now())
}

func horizon(days *int) (int, error) {
	if days == nil {
		return models.DefaultHorizonDays, nil
	}
	if *days < models.MinHorizonDays || *days > models.MaxHorizonDays {
		return 0, unprocessable("horizon_days must be between %d and %d", models.MinHorizonDays, models.MaxHorizonDays)
	}
	return *days, nil
}

// parseHorizon reads a raw form value; empty means the default.
func parseHorizon(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return horizon(nil)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, unprocessable("horizon_days must be an integer")
	}
	return horizon(&n)
}

func validateAdjustments(adjustments []models.Adjustment) error {
	for i, a := range adjustments {
		if a.Date.IsZero() {
			return unprocessable("adjustments[%d].date is required", i)
		}
	}
	return nil
}

func requireBranch(branch string) error {
	if strings.TrimSpace(branch) == "" {
		return unprocessable("branch is required")
	}
	return nil
}

// Forecast builds the history and base forecast for a branch.
func (e *Engine) Forecast(req models.ForecastRequest) (*models.ForecastResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	days, err := horizon(req.HorizonDays)
	if err != nil {
		return nil, err
	}
	rows, err := e.loadBranch(req.Branch, req.Files)
	if err != nil {
		return nil, err
	}
	series, err := dailyCashSeries(filterRows(rows, req.FromDate, req.ToDate))
	if err != nil {
		return nil, err
	}
	return &models.ForecastResult{
		Branch:   req.Branch,
		History:  historyPoints(series),
		Forecast: project(series, days),
		Drivers:  topDriversOf(rows),
	}, nil
}

// Simulate forecasts a branch and applies the given adjustments.
func (e *Engine) Simulate(req models.SimulationRequest) (*models.SimulationResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	days, err := horizon(req.HorizonDays)
	if err != nil {
		return nil, err
	}
	if err := validateAdjustments(req.Adjustments); err != nil {
		return nil, err
	}
	rows, err := e.loadBranch(req.Branch, req.Files)
	if err != nil {
		return nil, err
	}
	return simulate(req.Branch, filterRows(rows, req.BaseFromDate, req.BaseToDate), rows, days, req.Adjustments)
}

// Upload simulates an uploaded file. A scenario file (date, delta, label)
// is applied to the branch's base forecast; anything else is read as a
// statement and simulated without adjustments.
func (e *Engine) Upload(req models.UploadRequest) (*models.SimulationResult, error) {
	days, err := parseHorizon(req.HorizonDays)
	if err != nil {
		return nil, err
	}
	branch := strings.TrimSpace(req.Branch)
	if branch == "" {
		branch = BranchFromFilename(req.Filename)
	}

	adjustments, isScenario, err := readScenario(bytes.NewReader(req.Data))
	if err != nil {
		return nil, badRequest("%s: %v", req.Filename, err)
	}
	if isScenario {
		if branch == UploadBranch {
			return nil, unprocessable("branch is required for a scenario upload")
		}
		rows, err := e.loadBranch(branch, nil)
		if err != nil {
			return nil, err
		}
		return simulate(branch, rows, rows, days, adjustments)
	}

	rows, err := statement.Parse(bytes.NewReader(req.Data))
	if err != nil {
		return nil, badRequest("%s: %v", req.Filename, err)
	}
	return simulate(branch, rows, rows, days, nil)
}

// BranchFromFilename extracts <branch> from statement_<branch>_*.csv.
func BranchFromFilename(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if !strings.HasPrefix(stem, "statement_") {
		return UploadBranch
	}
	parts := strings.SplitN(strings.TrimPrefix(stem, "statement_"), "_", 2)
	if parts[0] == "" {
		return UploadBranch
	}
	return parts[0]
}

// simulate projects rows and applies adjustments. Drivers come from all
// loaded rows regardless of the date filter.
func simulate(branch string, rows, all []statement.Row, days int, adjustments []models.Adjustment) (*models.SimulationResult, error) {
	series, err := dailyCashSeries(rows)
	if err != nil {
		return nil, err
	}
	base := project(series, days)
	if adjustments == nil {
		adjustments = []models.Adjustment{}
	}
	return &models.SimulationResult{
		Branch:             branch,
		History:            historyPoints(series),
		ForecastBase:       base,
		ForecastAdjusted:   applyAdjustments(base, adjustments),
		AppliedAdjustments: adjustments,
		Drivers:            topDriversOf(all),
	}, nil
}

// project extends the series by days, starting the day after its last date.
func project(series []dailyPoint, days int) []models.TimeSeriesPoint {
	y := make([]float64, len(series))
	for i, p := range series {
		y[i] = p.Cash.InexactFloat64()
	}
	values := holtForecast(y, days)

	last := series[len(series)-1].Date
	out := make([]models.TimeSeriesPoint, days)
	for i, v := range values {
		out[i] = models.TimeSeriesPoint{
			Date: last.AddDays(i + 1),
			Cash: decimal.NewFromFloat(v).Round(2),
		}
	}
	return out
}

// applyAdjustments adds each delta to every forecast day on or after its date.
func applyAdjustments(base []models.TimeSeriesPoint, adjustments []models.Adjustment) []models.TimeSeriesPoint {
	out := make([]models.TimeSeriesPoint, len(base))
	for i, p := range base {
		cash := p.Cash
		for _, a := range adjustments {
			if !p.Date.Before(a.Date.Time) {
				cash = cash.Add(a.Delta)
			}
		}
		out[i] = models.TimeSeriesPoint{Date: p.Date, Cash: cash}
	}
	return out
}

// WhatIf translates the scalar preset into dated adjustments and simulates.
func (e *Engine) WhatIf(req models.WhatIfRequest) (*models.SimulationResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	days, err := horizon(req.HorizonDays)
	if err != nil {
		return nil, err
	}
	if req.DelayInvoices < 0 || req.EarlySalaries < 0 {
		return nil, unprocessable("delay_invoices and early_salaries must not be negative")
	}
	rows, err := e.loadBranch(req.Branch, nil)
	if err != nil {
		return nil, err
	}
	series, err := dailyCashSeries(rows)
	if err != nil {
		return nil, err
	}
	day1 := series[len(series)-1].Date.AddDays(1)
	return simulate(req.Branch, rows, rows, days, presetAdjustments(req, rows, len(series), day1))
}

func presetAdjustments(req models.WhatIfRequest, rows []statement.Row, historyDays int, day1 models.Date) []models.Adjustment {
	var out []models.Adjustment
	if !req.Adjustment.IsZero() {
		out = append(out, adjustment(day1, req.Adjustment, "adjustment"))
	}

	span := decimal.NewFromInt(int64(historyDays))
	if req.DelayInvoices > 0 {
		inflow := decimal.Zero
		for _, r := range rows {
			inflow = inflow.Add(r.Credit)
		}
		shifted := inflow.Div(span).Mul(decimal.NewFromInt(int64(req.DelayInvoices))).Round(2)
		out = append(out,
			adjustment(day1, shifted.Neg(), "delayed invoices"),
			adjustment(day1.AddDays(req.DelayInvoices), shifted, "delayed invoices received"),
		)
	}
	if req.EarlySalaries > 0 {
		salaries := decimal.Zero
		for _, r := range rows {
			if strings.Contains(strings.ToLower(r.Category), "salar") {
				salaries = salaries.Add(r.Debit)
			}
		}
		shifted := salaries.Div(span).Mul(decimal.NewFromInt(int64(req.EarlySalaries))).Round(2)
		out = append(out,
			adjustment(day1, shifted.Neg(), "early salaries"),
			adjustment(day1.AddDays(req.EarlySalaries), shifted, "early salaries offset"),
		)
	}
	return out
}

func adjustment(d models.Date, delta decimal.Decimal, label string) models.Adjustment {
	return models.Adjustment{Date: d, Delta: delta, Label: &label}
}

// sortByAmount orders items by absolute amount, largest first.
func sortByAmount(items []models.DebitOrderDue) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Amount.Abs(), items[j].Amount.Abs()
		if !a.Equal(b) {
			return a.GreaterThan(b)
		}
		return items[i].Customer < items[j].Customer
	})
}
