package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Dan9191/cashflow-service/internal/apperrors"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/Dan9191/cashflow-service/internal/repository"
	"github.com/pkg/errors"
)

func validateRef(ref models.InvoiceRef) error {
	if strings.TrimSpace(ref.Client) == "" {
		return apperrors.NewValidationError("client", "client is required")
	}
	if (ref.DueDate == nil || ref.DueDate.IsZero()) && strings.TrimSpace(ref.DueLabel) == "" {
		return apperrors.NewValidationError("due_date", "due_date or due_label is required")
	}
	return nil
}

// remindAt is the explicit time, else lead days before the due date at
// midnight UTC, else now for label-only invoices.
func (s *Service) remindAt(ref models.InvoiceRef) time.Time {
	if ref.RemindAt != nil && !ref.RemindAt.IsZero() {
		return ref.RemindAt.UTC()
	}
	if ref.DueDate != nil && !ref.DueDate.IsZero() {
		return ref.DueDate.AddDays(-s.config.ReminderLeadDays).Time
	}
	return s.now().UTC()
}

// SaveReminder schedules a reminder. Saving the same invoice again returns the
// stored reminder with created=false.
func (s *Service) SaveReminder(ctx context.Context, ref models.InvoiceRef) (*models.Reminder, bool, error) {
	if err := validateRef(ref); err != nil {
		return nil, false, err
	}
	rem := &models.Reminder{
		Key:       ref.Key(),
		Client:    strings.TrimSpace(ref.Client),
		InvoiceNo: ref.InvoiceNo,
		DueDate:   ref.DueDate,
		DueLabel:  ref.DueLabel,
		Amount:    ref.Amount,
		RemindAt:  s.remindAt(ref),
		CreatedAt: s.now().UTC(),
	}
	saved, created, err := s.store.SaveReminder(ctx, rem)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Infof("Reminder %d scheduled for %s at %s", saved.ID, saved.Client, saved.RemindAt.Format(time.RFC3339))
	}
	return saved, created, nil
}

// ListReminders returns pending reminders
func (s *Service) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	return s.store.ListReminders(ctx)
}

// DeleteReminder cancels a reminder
func (s *Service) DeleteReminder(ctx context.Context, id int64) error {
	err := s.store.DeleteReminder(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &apperrors.ValidationError{Field: "id", Message: "reminder not found", Status: http.StatusNotFound}
	}
	return err
}

// MarkPaid records a paid invoice and cancels its reminders
func (s *Service) MarkPaid(ctx context.Context, ref models.InvoiceRef) (*models.PaidInvoice, bool, error) {
	if err := validateRef(ref); err != nil {
		return nil, false, err
	}
	paid, created, err := s.store.MarkPaid(ctx, &models.PaidInvoice{
		Key:       ref.Key(),
		Client:    strings.TrimSpace(ref.Client),
		InvoiceNo: ref.InvoiceNo,
		DueDate:   ref.DueDate,
		DueLabel:  ref.DueLabel,
		Amount:    ref.Amount,
		PaidAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Infof("Invoice marked paid: %s", paid.Key)
	}
	return paid, created, nil
}

// ListPaid returns paid markers
func (s *Service) ListPaid(ctx context.Context) ([]models.PaidInvoice, error) {
	return s.store.ListPaid(ctx)
}
