package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqliteSchema stores dates as YYYY-MM-DD text and prices as decimal text
// so both round-trip exactly.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS items (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    category        TEXT NOT NULL,
    purchase_date   TEXT,
    expiration_date TEXT NOT NULL,
    price           TEXT,
    archived_date   TEXT,
    archive_reason  TEXT CHECK (archive_reason IN ('expired', 'used', 'discarded')),
    created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    CHECK ((archived_date IS NULL) = (archive_reason IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_items_archived_date ON items(archived_date);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS items (
    id              TEXT PRIMARY KEY,
    name            VARCHAR(200) NOT NULL,
    category        VARCHAR(100) NOT NULL,
    purchase_date   DATE,
    expiration_date DATE NOT NULL,
    price           NUMERIC(12, 2) CHECK (price >= 0),
    archived_date   DATE,
    archive_reason  TEXT CHECK (archive_reason IN ('expired', 'used', 'discarded')),
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK ((archived_date IS NULL) = (archive_reason IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_items_archived_date ON items(archived_date);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sqlx.DB) error {
	schema := sqliteSchema
	if db.DriverName() == DriverPostgres {
		schema = postgresSchema
	}

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
