package email

import (
	"fmt"
	"net/smtp"
	"time"

	"github.com/Dan9191/cashflow-service/internal/config"
	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   sendFunc
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendInvoiceReminder mails the configured finance inbox about an invoice
func (s *Sender) SendInvoiceReminder(rem models.Reminder, now time.Time) error {
	to := s.cfg.ReminderEmail
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}

	overdue := rem.DueDate != nil && rem.DueDate.Before(models.NewDate(now).Time)
	if overdue {
		e.Subject = fmt.Sprintf("Overdue invoice: %s", rem.Client)
	} else {
		e.Subject = fmt.Sprintf("Invoice reminder: %s", rem.Client)
	}
	e.Text = []byte(ReminderBody(rem, overdue))

	// Send email
	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send reminder %d to %s: %v", rem.ID, to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}

// ReminderBody renders the plain-text reminder message
func ReminderBody(rem models.Reminder, overdue bool) string {
	invoice := rem.Client
	if rem.InvoiceNo != "" {
		invoice = fmt.Sprintf("%s (%s)", rem.InvoiceNo, rem.Client)
	}
	due := rem.DueLabel
	if rem.DueDate != nil {
		due = "due on " + rem.DueDate.String()
	}

	body := "Hello,\n\n"
	if overdue {
		body += fmt.Sprintf(
			"Invoice %s for R %s was %s and has not been marked paid.\n"+
				"Please follow up with the client.\n",
			invoice, rem.Amount.StringFixed(2), due,
		)
	} else {
		body += fmt.Sprintf(
			"Invoice %s for R %s is %s.\n",
			invoice, rem.Amount.StringFixed(2), due,
		)
	}
	body += "\nCashflow Service"
	return body
}
