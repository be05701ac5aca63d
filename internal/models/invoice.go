package models

import "github.com/shopspring/decimal"

// Default look-ahead windows for due lists.
const (
	DefaultInvoiceWindowDays    = 14
	DefaultDebitOrderWindowDays = 7
)

// InvoiceDue is an outstanding receivable
type InvoiceDue struct {
	InvoiceNo string          `json:"invoice_no"`
	Client    string          `json:"client"`
	Amount    decimal.Decimal `json:"amount"`
	DueDate   Date            `json:"due_date"`
	DueLabel  string          `json:"due_label"`
}

// InvoicesDue is the response of GET /api/invoices_due
type InvoicesDue struct {
	WindowDays int          `json:"window_days"`
	Items      []InvoiceDue `json:"items"`
}

// DebitOrderDue is an upcoming recurring payment to a counterparty
type DebitOrderDue struct {
	Customer string          `json:"customer"`
	Amount   decimal.Decimal `json:"amount"`
	DueLabel string          `json:"dueLabel"`
}

// DebitOrdersDue is the response of GET /api/debit_orders_due
type DebitOrdersDue struct {
	Items []DebitOrderDue `json:"items"`
}
