package service

import (
	"context"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/integrations/insights"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/sirupsen/logrus"
)

// Provider computes forecasts and due lists. Errors are returned unchanged to
// the caller.
type Provider interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error)
	Simulate(ctx context.Context, req models.SimulationRequest) (*models.SimulationResult, error)
	WhatIf(ctx context.Context, req models.WhatIfRequest) (*models.SimulationResult, error)
	WhatIfUpload(ctx context.Context, req models.UploadRequest) (*models.SimulationResult, error)
	InvoicesDue(ctx context.Context, windowDays int) (*models.InvoicesDue, error)
	DebitOrdersDue(ctx context.Context, branch string, windowDays int) (*models.DebitOrdersDue, error)
}

// Store persists reminders and paid markers.
type Store interface {
	SaveReminder(ctx context.Context, rem *models.Reminder) (*models.Reminder, bool, error)
	ListReminders(ctx context.Context) ([]models.Reminder, error)
	DeleteReminder(ctx context.Context, id int64) error
	MarkPaid(ctx context.Context, p *models.PaidInvoice) (*models.PaidInvoice, bool, error)
	ListPaid(ctx context.Context) ([]models.PaidInvoice, error)
}

// Insighter produces an optional narrative for a forecast.
type Insighter interface {
	Generate(ctx context.Context, s insights.Summary) *string
}

// Service adapts gateway requests to the provider and owns the reminder list
type Service struct {
	provider Provider
	store    Store
	insights Insighter
	log      *logrus.Logger
	config   *config.Config
	now      func() time.Time
}

// NewService initializes a new service
func NewService(provider Provider, store Store, insighter Insighter, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{
		provider: provider,
		store:    store,
		insights: insighter,
		log:      log,
		config:   cfg,
		now:      time.Now,
	}
}

func requireBranch(branch string) error {
	if strings.TrimSpace(branch) == "" {
		return apperrors.NewValidationError("branch", "branch is required")
	}
	return nil
}

// defaultHorizon fills in an absent horizon. An explicit value, zero
// included, is left for the provider to judge.
func defaultHorizon(days *int) *int {
	if days == nil {
		return models.Days(models.DefaultHorizonDays)
	}
	return days
}

// Forecast forwards a forecast request
func (s *Service) Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	req.HorizonDays = defaultHorizon(req.HorizonDays)
	return s.provider.Forecast(ctx, req)
}

// Simulate forwards a simulation request
func (s *Service) Simulate(ctx context.Context, req models.SimulationRequest) (*models.SimulationResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	req.HorizonDays = defaultHorizon(req.HorizonDays)
	if req.Adjustments == nil {
		req.Adjustments = []models.Adjustment{}
	}
	return s.provider.Simulate(ctx, req)
}

// WhatIf forwards a scalar what-if preset
func (s *Service) WhatIf(ctx context.Context, req models.WhatIfRequest) (*models.SimulationResult, error) {
	if err := requireBranch(req.Branch); err != nil {
		return nil, err
	}
	req.HorizonDays = defaultHorizon(req.HorizonDays)
	return s.provider.WhatIf(ctx, req)
}

// WhatIfUpload forwards an uploaded scenario file unchanged. Its contents
// are the provider's to validate.
func (s *Service) WhatIfUpload(ctx context.Context, req models.UploadRequest) (*models.SimulationResult, error) {
	if len(req.Data) == 0 {
		return nil, apperrors.NewValidationError("file", "uploaded file is empty")
	}
	s.log.WithFields(logrus.Fields{
		"filename": req.Filename,
		"branch":   req.Branch,
		"bytes":    len(req.Data),
	}).Info("Forwarding what-if upload")
	return s.provider.WhatIfUpload(ctx, req)
}

// InvoicesDue passes the invoice list through
func (s *Service) InvoicesDue(ctx context.Context, windowDays int) (*models.InvoicesDue, error) {
	return s.provider.InvoicesDue(ctx, windowDays)
}

// DebitOrdersDue passes the debit order list through
func (s *Service) DebitOrdersDue(ctx context.Context, branch string, windowDays int) (*models.DebitOrdersDue, error) {
	if err := requireBranch(branch); err != nil {
		return nil, err
	}
	return s.provider.DebitOrdersDue(ctx, branch, windowDays)
}
