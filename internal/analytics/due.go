package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"
)

// InvoicesFile is the receivables ledger read from the data directory.
const InvoicesFile = "invoices.csv"

// debitOrderCycle is the assumed period of a recurring debit order.
const debitOrderCycle = 30

var invoiceColumns = []string{"invoice_no", "client", "amount", "due_date"}

// DueLabel describes a due date relative to today.
func DueLabel(today, due models.Date) string {
	days := today.DaysUntil(due)
	switch {
	case days < 0:
		return "Overdue"
	case days == 0:
		return "Due today"
	case days == 1:
		return "Due tomorrow"
	default:
		return fmt.Sprintf("Due in %d days", days)
	}
}

// InvoicesDue lists unpaid invoices due within windowDays, overdue included.
func (e *Engine) InvoicesDue(windowDays int) (*models.InvoicesDue, error) {
	if windowDays < 0 {
		return nil, unprocessable("window_days must not be negative")
	}
	f, err := os.Open(filepath.Join(e.dataDir, InvoicesFile))
	if err != nil {
		return nil, notFound("%s not found", InvoicesFile)
	}
	defer f.Close()

	invoices, err := readInvoices(f)
	if err != nil {
		return nil, badRequest("%s: %v", InvoicesFile, err)
	}

	today := e.today()
	limit := today.AddDays(windowDays)
	items := make([]models.InvoiceDue, 0, len(invoices))
	for _, inv := range invoices {
		if inv.DueDate.After(limit.Time) {
			continue
		}
		inv.DueLabel = DueLabel(today, inv.DueDate)
		items = append(items, inv)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DueDate.Before(items[j].DueDate.Time)
	})
	return &models.InvoicesDue{WindowDays: windowDays, Items: items}, nil
}

func readInvoices(r io.Reader) ([]models.InvoiceDue, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range invoiceColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing required column %q", col)
		}
	}

	var out []models.InvoiceDue
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		field := func(col string) string {
			if i := idx[col]; i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		amount, err := decimal.NewFromString(field("amount"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid amount %q", line, field("amount"))
		}
		due, err := models.ParseDate(field("due_date"))
		if err != nil {
			return nil, fmt.Errorf("line %d: %v", line, err)
		}
		out = append(out, models.InvoiceDue{
			InvoiceNo: field("invoice_no"),
			Client:    field("client"),
			Amount:    amount,
			DueDate:   due,
		})
	}
	return out, nil
}

type counterpartyFlow struct {
	net       decimal.Decimal
	lastDate  models.Date
	lastDebit decimal.Decimal
}

// DebitOrdersDue estimates recurring payments expected within windowDays.
func (e *Engine) DebitOrdersDue(branch string, windowDays int) (*models.DebitOrdersDue, error) {
	if err := requireBranch(branch); err != nil {
		return nil, err
	}
	if windowDays < 0 {
		return nil, unprocessable("window_days must not be negative")
	}
	rows, err := e.loadBranch(branch, nil)
	if err != nil {
		return nil, err
	}

	flows := map[string]*counterpartyFlow{}
	for _, r := range rows {
		if r.Counterparty == "" {
			continue
		}
		f, ok := flows[r.Counterparty]
		if !ok {
			f = &counterpartyFlow{}
			flows[r.Counterparty] = f
		}
		f.net = f.net.Add(r.Net())
		if r.Debit.IsPositive() && !r.Date.Before(f.lastDate.Time) {
			f.lastDate = r.Date
			f.lastDebit = r.Debit
		}
	}

	today := e.today()
	limit := today.AddDays(windowDays)
	items := []models.DebitOrderDue{}
	for name, f := range flows {
		if !f.net.IsNegative() || f.lastDate.IsZero() {
			continue
		}
		next := f.lastDate.AddDays(debitOrderCycle)
		for next.Before(today.Time) {
			next = next.AddDays(debitOrderCycle)
		}
		if next.After(limit.Time) {
			continue
		}
		items = append(items, models.DebitOrderDue{
			Customer: name,
			Amount:   f.lastDebit.Neg().Round(2),
			DueLabel: DueLabel(today, next),
		})
	}
	sortByAmount(items)
	if len(items) > topDrivers {
		items = items[:topDrivers]
	}
	return &models.DebitOrdersDue{Items: items}, nil
}
