package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/integrations/insights"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.ForecastResult)
	return res, args.Error(1)
}

func (m *mockProvider) Simulate(ctx context.Context, req models.SimulationRequest) (*models.SimulationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.SimulationResult)
	return res, args.Error(1)
}

func (m *mockProvider) WhatIf(ctx context.Context, req models.WhatIfRequest) (*models.SimulationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.SimulationResult)
	return res, args.Error(1)
}

func (m *mockProvider) WhatIfUpload(ctx context.Context, req models.UploadRequest) (*models.SimulationResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*models.SimulationResult)
	return res, args.Error(1)
}

func (m *mockProvider) InvoicesDue(ctx context.Context, windowDays int) (*models.InvoicesDue, error) {
	args := m.Called(ctx, windowDays)
	res, _ := args.Get(0).(*models.InvoicesDue)
	return res, args.Error(1)
}

func (m *mockProvider) DebitOrdersDue(ctx context.Context, branch string, windowDays int) (*models.DebitOrdersDue, error) {
	args := m.Called(ctx, branch, windowDays)
	res, _ := args.Get(0).(*models.DebitOrdersDue)
	return res, args.Error(1)
}

type stubInsighter struct {
	text   *string
	called bool
}

func (s *stubInsighter) Generate(context.Context, insights.Summary) *string {
	s.called = true
	return s.text
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, provider Provider, insighter Insighter) (*Service, *repository.Repository) {
	t.Helper()
	repo, err := repository.Open(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	require.NoError(t, repo.Migrate(context.Background()))

	log, _ := test.NewNullLogger()
	svc := NewService(provider, repo, insighter, log, &config.Config{ReminderLeadDays: 2})
	svc.now = func() time.Time { return testNow }
	return svc, repo
}

func date(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func point(t *testing.T, d string, cash int64) models.TimeSeriesPoint {
	return models.TimeSeriesPoint{Date: date(t, d), Cash: decimal.NewFromInt(cash)}
}

func forecastResult(t *testing.T) *models.ForecastResult {
	return &models.ForecastResult{
		Branch:   "CPT01",
		History:  []models.TimeSeriesPoint{point(t, "2024-03-08", 1000), point(t, "2024-03-09", 1250)},
		Forecast: []models.TimeSeriesPoint{point(t, "2024-03-10", 1300), point(t, "2024-03-11", 1350)},
		Drivers: models.Drivers{
			TopInflowsByCategory:  map[string]decimal.Decimal{"Sales": decimal.NewFromInt(8000)},
			TopOutflowsByCategory: map[string]decimal.Decimal{"Rent": decimal.NewFromInt(-5000), "Salaries": decimal.NewFromInt(-12000)},
			TopCounterparties:     map[string]decimal.Decimal{"Landlord": decimal.NewFromInt(-5000), "Client A": decimal.NewFromInt(8000)},
		},
	}
}

func TestForecast_DefaultsAndForwards(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	want := forecastResult(t)
	provider.On("Forecast", ctx, models.ForecastRequest{Branch: "CPT01", HorizonDays: models.Days(30)}).Return(want, nil)

	got, err := svc.Forecast(ctx, models.ForecastRequest{Branch: "CPT01"})
	require.NoError(t, err)
	assert.Same(t, want, got)
	provider.AssertExpectations(t)
}

func TestForecast_RequiresBranch(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)

	_, err := svc.Forecast(context.Background(), models.ForecastRequest{Branch: "  "})
	assert.True(t, apperrors.IsValidation(err))
	provider.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)
}

func TestProviderErrorsPassThroughUnchanged(t *testing.T) {
	ctx := context.Background()
	failures := []error{
		&apperrors.UpstreamError{Op: "simulate", Status: 422, Body: []byte(`{"detail":"bad"}`)},
		&apperrors.UpstreamError{Op: "simulate", Status: 502, Body: []byte("gateway")},
		&apperrors.TransportError{Op: "simulate", Err: errors.New("connection refused")},
	}
	for _, failure := range failures {
		provider := &mockProvider{}
		svc, _ := newTestService(t, provider, nil)
		provider.On("Simulate", ctx, mock.Anything).Return(nil, failure)

		_, err := svc.Simulate(ctx, models.SimulationRequest{Branch: "CPT01"})
		assert.Same(t, failure, err)
	}
}

func TestSimulate_SendsEmptyAdjustmentList(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	provider.On("Simulate", ctx, mock.MatchedBy(func(req models.SimulationRequest) bool {
		return req.Adjustments != nil && len(req.Adjustments) == 0 && *req.HorizonDays == 14
	})).Return(&models.SimulationResult{}, nil)

	_, err := svc.Simulate(ctx, models.SimulationRequest{Branch: "CPT01", HorizonDays: models.Days(14)})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestWhatIfUpload_RejectsOnlyEmptyFiles(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.WhatIfUpload(ctx, models.UploadRequest{Filename: "scenario.csv"})
	assert.True(t, apperrors.IsValidation(err))
	provider.AssertNotCalled(t, "WhatIfUpload", mock.Anything, mock.Anything)

	// scenario files are not statements and still reach the provider
	scenario := models.UploadRequest{
		Filename:    "scenario.csv",
		Data:        []byte("date,delta,label\n2024-02-05,-500,rent\n"),
		Branch:      "CPT01",
		HorizonDays: "14",
	}
	provider.On("WhatIfUpload", ctx, scenario).Return(&models.SimulationResult{Branch: "CPT01"}, nil)
	res, err := svc.WhatIfUpload(ctx, scenario)
	require.NoError(t, err)
	assert.Equal(t, "CPT01", res.Branch)

	// so do files the provider will reject; its answer comes back unchanged
	junk := models.UploadRequest{Filename: "notes.csv", Data: []byte("anything at all\n")}
	refused := &apperrors.UpstreamError{Op: "whatif_upload", Status: 400, Body: []byte(`{"detail":"column date: required column is missing"}`)}
	provider.On("WhatIfUpload", ctx, junk).Return(nil, refused)
	_, err = svc.WhatIfUpload(ctx, junk)
	assert.Same(t, refused, err)
	provider.AssertExpectations(t)
}

func TestForecast_ExplicitZeroHorizonIsForwarded(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	refused := &apperrors.UpstreamError{Op: "forecast", Status: 422, Body: []byte(`{"detail":"horizon_days must be between 1 and 120"}`)}
	provider.On("Forecast", ctx, models.ForecastRequest{Branch: "CPT01", HorizonDays: models.Days(0)}).Return(nil, refused)

	_, err := svc.Forecast(ctx, models.ForecastRequest{Branch: "CPT01", HorizonDays: models.Days(0)})
	assert.Same(t, refused, err)
	provider.AssertExpectations(t)
}

func TestDashboard(t *testing.T) {
	provider := &mockProvider{}
	insight := "Liquidity is fine."
	insighter := &stubInsighter{text: &insight}
	svc, _ := newTestService(t, provider, insighter)
	ctx := context.Background()

	provider.On("Forecast", ctx, mock.Anything).Return(forecastResult(t), nil)
	provider.On("DebitOrdersDue", ctx, "CPT01", models.DefaultDebitOrderWindowDays).Return(&models.DebitOrdersDue{}, nil)
	provider.On("InvoicesDue", ctx, models.DefaultInvoiceWindowDays).Return(&models.InvoicesDue{
		WindowDays: 14,
		Items: []models.InvoiceDue{
			{InvoiceNo: "INV-1", Client: "Acme", Amount: decimal.NewFromInt(100), DueDate: date(t, "2024-03-12")},
			{InvoiceNo: "INV-2", Client: "Beta", Amount: decimal.NewFromInt(200), DueDate: date(t, "2024-03-13")},
		},
	}, nil)

	due := date(t, "2024-03-12")
	_, _, err := svc.MarkPaid(ctx, models.InvoiceRef{Client: "acme", DueDate: &due, Amount: decimal.NewFromInt(100)})
	require.NoError(t, err)

	view, err := svc.Dashboard(ctx, models.DashboardRequest{ForecastRequest: models.ForecastRequest{Branch: "CPT01"}})
	require.NoError(t, err)

	assert.Equal(t, "1250", view.CurrentBalance.String())
	assert.Equal(t, "250", view.DeltaToday.String())
	assert.Equal(t, "17000", view.UpcomingDebits.String())
	require.Len(t, view.DebitOrders, 1)
	assert.Equal(t, "Landlord", view.DebitOrders[0].Customer)
	require.Len(t, view.InvoicesDue, 1)
	assert.Equal(t, "INV-2", view.InvoicesDue[0].InvoiceNo)
	assert.Len(t, view.Chart.Labels, 4)
	require.NotNil(t, view.Insight)
	assert.Equal(t, insight, *view.Insight)
}

func TestDashboard_DegradesSecondaryCalls(t *testing.T) {
	provider := &mockProvider{}
	insighter := &stubInsighter{}
	svc, _ := newTestService(t, provider, insighter)
	ctx := context.Background()

	provider.On("Forecast", ctx, mock.Anything).Return(forecastResult(t), nil)
	provider.On("DebitOrdersDue", ctx, "CPT01", 3).Return(nil, &apperrors.TransportError{Op: "debit_orders_due", Err: errors.New("down")})
	provider.On("InvoicesDue", ctx, 5).Return(nil, &apperrors.UpstreamError{Op: "invoices_due", Status: 404, Body: []byte("{}")})

	view, err := svc.Dashboard(ctx, models.DashboardRequest{
		ForecastRequest: models.ForecastRequest{Branch: "CPT01"},
		WindowDays:      5,
		DebitWindowDays: 3,
	})
	require.NoError(t, err)
	require.Len(t, view.DebitOrders, 1)
	assert.Equal(t, "Estimated from recent debits", view.DebitOrders[0].DueLabel)
	assert.Empty(t, view.InvoicesDue)
	assert.NotNil(t, view.InvoicesDue)
	assert.True(t, insighter.called)
	assert.Nil(t, view.Insight)
}

func TestDashboard_ForecastFailureFails(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	upstream := &apperrors.UpstreamError{Op: "forecast", Status: 404, Body: []byte(`{"detail":"No CSVs"}`)}
	provider.On("Forecast", ctx, mock.Anything).Return(nil, upstream)

	_, err := svc.Dashboard(ctx, models.DashboardRequest{ForecastRequest: models.ForecastRequest{Branch: "X"}})
	assert.Same(t, upstream, err)
	provider.AssertNotCalled(t, "InvoicesDue", mock.Anything, mock.Anything)
}

func TestWhatIfChart(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	base := forecastResult(t)
	provider.On("Simulate", ctx, mock.Anything).Return(&models.SimulationResult{
		Branch:           "CPT01",
		History:          base.History,
		ForecastBase:     base.Forecast,
		ForecastAdjusted: []models.TimeSeriesPoint{point(t, "2024-03-11", 850)},
	}, nil)

	chart, err := svc.WhatIfChart(ctx, models.SimulationRequest{Branch: "CPT01"})
	require.NoError(t, err)
	require.Len(t, chart.WhatIf, 4)
	assert.Nil(t, chart.WhatIf[2])
	require.NotNil(t, chart.WhatIf[3])
	assert.Equal(t, "850", chart.WhatIf[3].String())
}

func TestExportForecast(t *testing.T) {
	provider := &mockProvider{}
	svc, _ := newTestService(t, provider, nil)
	ctx := context.Background()

	_, err := svc.ExportForecast(ctx, models.ForecastRequest{Branch: "CPT01"}, "docx")
	assert.True(t, apperrors.IsValidation(err))
	provider.AssertNotCalled(t, "Forecast", mock.Anything, mock.Anything)

	provider.On("Forecast", ctx, mock.Anything).Return(forecastResult(t), nil)
	out, err := svc.ExportForecast(ctx, models.ForecastRequest{Branch: "CPT01"}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "forecast_CPT01_20240310.pdf", out.Filename)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.NotEmpty(t, out.Data)
}

func TestSaveReminder(t *testing.T) {
	svc, _ := newTestService(t, &mockProvider{}, nil)
	ctx := context.Background()
	due := date(t, "2024-03-15")
	ref := models.InvoiceRef{Client: "Acme ", DueDate: &due, Amount: decimal.RequireFromString("1200.00")}

	first, created, err := svc.SaveReminder(ctx, ref)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Acme", first.Client)
	assert.True(t, time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC).Equal(first.RemindAt))

	again, created, err := svc.SaveReminder(ctx, models.InvoiceRef{Client: "ACME", DueDate: &due, Amount: decimal.NewFromInt(1200)})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	list, err := svc.ListReminders(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSaveReminder_LabelOnlyAndValidation(t *testing.T) {
	svc, _ := newTestService(t, &mockProvider{}, nil)
	ctx := context.Background()

	rem, _, err := svc.SaveReminder(ctx, models.InvoiceRef{Client: "Beta", DueLabel: "Due in 3 days", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.True(t, testNow.Equal(rem.RemindAt))

	_, _, err = svc.SaveReminder(ctx, models.InvoiceRef{Client: "Beta", Amount: decimal.NewFromInt(5)})
	assert.True(t, apperrors.IsValidation(err))
	_, _, err = svc.SaveReminder(ctx, models.InvoiceRef{DueLabel: "Overdue"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestDeleteReminder(t *testing.T) {
	svc, _ := newTestService(t, &mockProvider{}, nil)
	ctx := context.Background()

	rem, _, err := svc.SaveReminder(ctx, models.InvoiceRef{Client: "Beta", DueLabel: "Overdue", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteReminder(ctx, rem.ID))

	err = svc.DeleteReminder(ctx, rem.ID)
	assert.Equal(t, 404, apperrors.ToProblem(err).Status)
}

func TestMarkPaid_CancelsReminderAndPersists(t *testing.T) {
	svc, repo := newTestService(t, &mockProvider{}, nil)
	ctx := context.Background()
	due := date(t, "2024-03-15")
	ref := models.InvoiceRef{Client: "Acme", InvoiceNo: "INV-9", DueDate: &due, Amount: decimal.NewFromInt(1200)}

	_, _, err := svc.SaveReminder(ctx, ref)
	require.NoError(t, err)
	_, created, err := svc.MarkPaid(ctx, ref)
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = svc.MarkPaid(ctx, ref)
	require.NoError(t, err)
	assert.False(t, created)

	pending, err := svc.ListReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// a fresh service over the same store still sees the marker
	log, _ := test.NewNullLogger()
	reloaded := NewService(&mockProvider{}, repo, nil, log, &config.Config{})
	paid, err := reloaded.ListPaid(ctx)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "INV-9", paid[0].InvoiceNo)
}
