package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/cashflow-service/internal/models"
	"github.com/shopspring/decimal"

	_ "github.com/lib/pq"  // register postgres driver
	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

const timeLayout = time.RFC3339

// Repository persists reminders and paid-invoice markers
type Repository struct {
	db     *sql.DB
	driver string
}

// NewRepository wraps an open database handle
func NewRepository(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver}
}

// Open connects to the store and verifies the connection
func Open(driver, dsn string) (*Repository, error) {
	if _, err := schemaFor(driver); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	if driver == DriverSQLite {
		// one writer; also keeps a ":memory:" database alive across calls
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", driver, err)
	}
	return NewRepository(db, driver), nil
}

// Close closes the underlying database
func (r *Repository) Close() error {
	return r.db.Close()
}

// Migrate creates the tables when they do not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	schema, err := schemaFor(r.driver)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveReminder inserts a reminder unless one with the same key exists. It
// returns the stored reminder and whether it was created.
func (r *Repository) SaveReminder(ctx context.Context, rem *models.Reminder) (*models.Reminder, bool, error) {
	if rem.CreatedAt.IsZero() {
		rem.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO reminders (invoice_key, client, invoice_no, due_date, due_label, amount, remind_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (invoice_key) DO NOTHING
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		rem.Key, rem.Client, rem.InvoiceNo, nullDate(rem.DueDate), rem.DueLabel,
		rem.Amount.String(), formatTime(rem.RemindAt), formatTime(rem.CreatedAt),
	).Scan(&rem.ID)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err := r.findReminder(ctx, "invoice_key", rem.Key)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to save reminder: %w", err)
	}
	return rem, true, nil
}

// GetReminder retrieves a reminder by id
func (r *Repository) GetReminder(ctx context.Context, id int64) (*models.Reminder, error) {
	return r.findReminder(ctx, "id", id)
}

func (r *Repository) findReminder(ctx context.Context, column string, value interface{}) (*models.Reminder, error) {
	query := reminderColumns + ` FROM reminders WHERE ` + column + ` = $1`
	rem, err := scanReminder(r.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reminder: %w", err)
	}
	return rem, nil
}

// ListReminders returns the reminders that have not been sent, soonest first
func (r *Repository) ListReminders(ctx context.Context) ([]models.Reminder, error) {
	query := reminderColumns + ` FROM reminders WHERE sent_at IS NULL ORDER BY remind_at, id`
	return r.queryReminders(ctx, query)
}

// DueReminders returns unsent reminders whose time has come
func (r *Repository) DueReminders(ctx context.Context, now time.Time) ([]models.Reminder, error) {
	query := reminderColumns + ` FROM reminders WHERE sent_at IS NULL AND remind_at <= $1 ORDER BY remind_at, id`
	return r.queryReminders(ctx, query, formatTime(now))
}

// MarkReminderSent records when a reminder went out
func (r *Repository) MarkReminderSent(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET sent_at = $1 WHERE id = $2`, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return expectOne(res)
}

// DeleteReminder removes a reminder by id
func (r *Repository) DeleteReminder(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return expectOne(res)
}

// MarkPaid stores a paid marker unless one with the same key exists and drops
// reminders for the same invoice.
func (r *Repository) MarkPaid(ctx context.Context, p *models.PaidInvoice) (*models.PaidInvoice, bool, error) {
	if p.PaidAt.IsZero() {
		p.PaidAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE invoice_key = $1`, p.Key); err != nil {
		return nil, false, fmt.Errorf("failed to delete reminders: %w", err)
	}

	query := `
		INSERT INTO paid_invoices (invoice_key, client, invoice_no, due_date, due_label, amount, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (invoice_key) DO NOTHING
		RETURNING id`
	created := true
	err = tx.QueryRowContext(ctx, query,
		p.Key, p.Client, p.InvoiceNo, nullDate(p.DueDate), p.DueLabel, p.Amount.String(), formatTime(p.PaidAt),
	).Scan(&p.ID)
	result := p
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		result, err = scanPaid(tx.QueryRowContext(ctx, paidColumns+` FROM paid_invoices WHERE invoice_key = $1`, p.Key))
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit: %w", err)
	}
	return result, created, nil
}

// ListPaid returns every paid marker, most recent first
func (r *Repository) ListPaid(ctx context.Context) ([]models.PaidInvoice, error) {
	rows, err := r.db.QueryContext(ctx, paidColumns+` FROM paid_invoices ORDER BY paid_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list paid invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.PaidInvoice{}
	for rows.Next() {
		p, err := scanPaid(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paid invoice: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

const reminderColumns = `SELECT id, invoice_key, client, invoice_no, due_date, due_label, amount, remind_at, sent_at, created_at`

const paidColumns = `SELECT id, invoice_key, client, invoice_no, due_date, due_label, amount, paid_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) queryReminders(ctx context.Context, query string, args ...interface{}) ([]models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Reminder{}
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		out = append(out, *rem)
	}
	return out, rows.Err()
}

func scanReminder(s scanner) (*models.Reminder, error) {
	var (
		rem                         models.Reminder
		dueDate, sentAt             sql.NullString
		amount, remindAt, createdAt string
	)
	err := s.Scan(&rem.ID, &rem.Key, &rem.Client, &rem.InvoiceNo, &dueDate, &rem.DueLabel,
		&amount, &remindAt, &sentAt, &createdAt)
	if err != nil {
		return nil, err
	}
	if rem.DueDate, err = parseNullDate(dueDate); err != nil {
		return nil, err
	}
	if rem.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if rem.RemindAt, err = time.Parse(timeLayout, remindAt); err != nil {
		return nil, err
	}
	if rem.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t, err := time.Parse(timeLayout, sentAt.String)
		if err != nil {
			return nil, err
		}
		rem.SentAt = &t
	}
	return &rem, nil
}

func scanPaid(s scanner) (*models.PaidInvoice, error) {
	var (
		p              models.PaidInvoice
		dueDate        sql.NullString
		amount, paidAt string
	)
	err := s.Scan(&p.ID, &p.Key, &p.Client, &p.InvoiceNo, &dueDate, &p.DueLabel, &amount, &paidAt)
	if err != nil {
		return nil, err
	}
	if p.DueDate, err = parseNullDate(dueDate); err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	if p.PaidAt, err = time.Parse(timeLayout, paidAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullDate(d *models.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(s sql.NullString) (*models.Date, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := models.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
