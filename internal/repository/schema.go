package repository

import "fmt"

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Timestamps and dates are stored as text so both drivers share one set of
// queries; amounts keep their exact decimal representation.
const tablesSQL = `
CREATE TABLE IF NOT EXISTS reminders (
	id          %[1]s,
	invoice_key TEXT NOT NULL UNIQUE,
	client      TEXT NOT NULL,
	invoice_no  TEXT NOT NULL DEFAULT '',
	due_date    TEXT,
	due_label   TEXT NOT NULL DEFAULT '',
	amount      TEXT NOT NULL,
	remind_at   TEXT NOT NULL,
	sent_at     TEXT,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reminders_pending ON reminders(sent_at, remind_at);

CREATE TABLE IF NOT EXISTS paid_invoices (
	id          %[1]s,
	invoice_key TEXT NOT NULL UNIQUE,
	client      TEXT NOT NULL,
	invoice_no  TEXT NOT NULL DEFAULT '',
	due_date    TEXT,
	due_label   TEXT NOT NULL DEFAULT '',
	amount      TEXT NOT NULL,
	paid_at     TEXT NOT NULL
);
`

func schemaFor(driver string) (string, error) {
	switch driver {
	case DriverSQLite:
		return fmt.Sprintf(tablesSQL, "INTEGER PRIMARY KEY AUTOINCREMENT"), nil
	case DriverPostgres:
		return fmt.Sprintf(tablesSQL, "BIGSERIAL PRIMARY KEY"), nil
	default:
		return "", fmt.Errorf("unsupported store driver %q", driver)
	}
}
