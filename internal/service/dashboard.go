package service

import (
	"context"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/dashboard"
	"github.com/Dan9191/cashflow-service/internal/export"
	"github.com/Dan9191/cashflow-service/internal/integrations/insights"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Dashboard assembles the forecast with the figures derived from it. Only the
// forecast itself is required; debit orders, invoices and the insight degrade.
func (s *Service) Dashboard(ctx context.Context, req models.DashboardRequest) (*dashboard.View, error) {
	res, err := s.Forecast(ctx, req.ForecastRequest)
	if err != nil {
		return nil, err
	}

	view := &dashboard.View{
		Branch:         res.Branch,
		CurrentBalance: dashboard.CurrentBalance(res.History),
		DeltaToday:     dashboard.DeltaToday(res.History),
		UpcomingDebits: dashboard.UpcomingDebits(res.Drivers.Categories()),
		Chart:          dashboard.BuildChart(res.History, res.Forecast, nil),
		Drivers:        res.Drivers,
	}
	view.DebitOrders = s.debitOrders(ctx, req.Branch, req.DebitWindowDays, res.Drivers)
	view.InvoicesDue = s.unpaidInvoices(ctx, req.WindowDays)

	if s.insights != nil {
		view.Insight = s.insights.Generate(ctx, insights.Summary{
			Branch:         res.Branch,
			CurrentBalance: view.CurrentBalance,
			DeltaToday:     view.DeltaToday,
			UpcomingDebits: view.UpcomingDebits,
			Forecast:       res.Forecast,
			Categories:     res.Drivers.Categories(),
		})
	}
	return view, nil
}

// debitOrders prefers the provider's list and falls back to the drivers.
func (s *Service) debitOrders(ctx context.Context, branch string, windowDays int, drivers models.Drivers) []models.DebitOrderDue {
	if windowDays == 0 {
		windowDays = models.DefaultDebitOrderWindowDays
	}
	res, err := s.provider.DebitOrdersDue(ctx, branch, windowDays)
	if err != nil {
		s.log.WithError(err).WithField("branch", branch).Warn("Debit orders unavailable, using drivers")
		return dashboard.DebitOrdersFromDrivers(drivers.TopCounterparties)
	}
	if len(res.Items) == 0 {
		return dashboard.DebitOrdersFromDrivers(drivers.TopCounterparties)
	}
	return res.Items
}

// unpaidInvoices lists due invoices without the ones marked paid.
func (s *Service) unpaidInvoices(ctx context.Context, windowDays int) []models.InvoiceDue {
	if windowDays == 0 {
		windowDays = models.DefaultInvoiceWindowDays
	}
	res, err := s.provider.InvoicesDue(ctx, windowDays)
	if err != nil {
		s.log.WithError(err).Warn("Invoices due unavailable")
		return []models.InvoiceDue{}
	}
	paid, err := s.store.ListPaid(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Paid invoices unavailable, showing unfiltered list")
		return res.Items
	}
	items := dashboard.FilterUnpaid(res.Items, paid)
	if items == nil {
		items = []models.InvoiceDue{}
	}
	return items
}

// WhatIfChart simulates and lays the adjusted path over the base forecast.
func (s *Service) WhatIfChart(ctx context.Context, req models.SimulationRequest) (*dashboard.Chart, error) {
	res, err := s.Simulate(ctx, req)
	if err != nil {
		return nil, err
	}
	chart := dashboard.BuildChart(res.History, res.ForecastBase, res.ForecastAdjusted)
	return &chart, nil
}

// Export is a rendered forecast document.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportForecast renders the forecast as xlsx or pdf.
func (s *Service) ExportForecast(ctx context.Context, req models.ForecastRequest, format string) (*Export, error) {
	if format != export.FormatXLSX && format != export.FormatPDF {
		return nil, apperrors.NewValidationError("format", "format must be xlsx or pdf")
	}
	res, err := s.Forecast(ctx, req)
	if err != nil {
		return nil, err
	}
	now := s.now()
	data, err := export.Build(format, res, now)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"branch": res.Branch, "format": format, "bytes": len(data)}).Info("Forecast exported")
	return &Export{
		Filename:    export.Filename(res.Branch, format, now),
		ContentType: export.ContentType(format),
		Data:        data,
	}, nil
}
