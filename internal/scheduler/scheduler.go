// Package scheduler runs the periodic invoice reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-service/internal/metrics"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ReminderStore is the part of the repository the sweep needs.
type ReminderStore interface {
	DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error)
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}

// Notifier delivers a reminder.
type Notifier interface {
	SendInvoiceReminder(rem models.Reminder, now time.Time) error
}

// Scheduler sends due reminders on a cron schedule. Without a notifier
// reminders are written to the log instead.
type Scheduler struct {
	store    ReminderStore
	notifier Notifier
	log      *logrus.Logger
	now      func() time.Time
	cron     *cron.Cron
}

// New creates a scheduler; notifier may be nil.
func New(store ReminderStore, notifier Notifier, log *logrus.Logger) *Scheduler {
	return &Scheduler{store: store, notifier: notifier, log: log, now: time.Now}
}

// Start registers the sweep on the cron schedule and starts the runner.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	logger := cron.PrintfLogger(s.log)
	s.cron = cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("Reminder sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	s.cron.Start()
	s.log.Infof("Reminder sweep scheduled: %s", spec)
	return nil
}

// Stop halts the runner and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep delivers every unsent reminder that is due and marks it sent. A
// failed delivery stays pending for the next sweep.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.store.DueReminders(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, rem := range due {
		entry := s.log.WithFields(logrus.Fields{
			"reminder_id": rem.ID,
			"client":      rem.Client,
			"amount":      rem.Amount.StringFixed(2),
			"due":         dueText(rem),
		})

		result := "logged"
		if s.notifier != nil {
			if err := s.notifier.SendInvoiceReminder(rem, now); err != nil {
				entry.WithError(err).Warn("Reminder delivery failed")
				metrics.IncReminder(metrics.ResultError)
				continue
			}
			result = "sent"
		} else {
			entry.Info("Invoice reminder due")
		}

		if err := s.store.MarkReminderSent(ctx, rem.ID, now); err != nil {
			return sent, err
		}
		metrics.IncReminder(result)
		sent++
	}
	if sent > 0 {
		s.log.Infof("Reminder sweep delivered %d of %d", sent, len(due))
	}
	return sent, nil
}

func dueText(rem models.Reminder) string {
	if rem.DueDate != nil {
		return rem.DueDate.String()
	}
	return rem.DueLabel
}
