package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Reminder is a scheduled alert for an invoice approaching its due date
type Reminder struct {
	ID        int64           `json:"id"`
	Key       string          `json:"key"`
	Client    string          `json:"client"`
	InvoiceNo string          `json:"invoice_no,omitempty"`
	DueDate   *Date           `json:"due_date,omitempty"`
	DueLabel  string          `json:"due_label,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	RemindAt  time.Time       `json:"remind_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// PaidInvoice marks an invoice as settled so it drops out of the due list
type PaidInvoice struct {
	ID        int64           `json:"id"`
	Key       string          `json:"key"`
	Client    string          `json:"client"`
	InvoiceNo string          `json:"invoice_no,omitempty"`
	DueDate   *Date           `json:"due_date,omitempty"`
	DueLabel  string          `json:"due_label,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
}

// InvoiceRef identifies an invoice by the fields a client submits.
type InvoiceRef struct {
	Client    string          `json:"client"`
	InvoiceNo string          `json:"invoice_no,omitempty"`
	DueDate   *Date           `json:"due_date,omitempty"`
	DueLabel  string          `json:"due_label,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	RemindAt  *time.Time      `json:"remind_at,omitempty"`
}

// Key returns the de-duplication key: client, due date (or label), amount.
func (r InvoiceRef) Key() string {
	return InvoiceKey(r.Client, r.DueDate, r.DueLabel, r.Amount)
}

// InvoiceKey builds the composite key shared by reminders and paid markers.
func InvoiceKey(client string, dueDate *Date, dueLabel string, amount decimal.Decimal) string {
	due := strings.TrimSpace(dueLabel)
	if dueDate != nil && !dueDate.IsZero() {
		due = dueDate.String()
	}
	return strings.ToLower(strings.TrimSpace(client)) + "|" + due + "|" + amount.StringFixed(2)
}

// Key returns the de-duplication key of an invoice in the due list.
func (i InvoiceDue) Key() string {
	return InvoiceKey(i.Client, &i.DueDate, i.DueLabel, i.Amount)
}
