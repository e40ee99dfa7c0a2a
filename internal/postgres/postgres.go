// Package postgres is the server primary-store dialect, using the pgx
// database/sql driver.
package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS parties (
    party_id TEXT PRIMARY KEY,
    display_name TEXT NOT NULL,
    kind TEXT NOT NULL,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    secondary_id TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    converted_at TEXT NOT NULL DEFAULT ''
)`,
	`CREATE TABLE IF NOT EXISTS contact_channels (
    channel_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL REFERENCES parties(party_id) ON DELETE CASCADE,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    is_primary BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS addresses (
    address_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL REFERENCES parties(party_id) ON DELETE CASCADE,
    line1 TEXT NOT NULL DEFAULT '',
    line2 TEXT NOT NULL DEFAULT '',
    city TEXT NOT NULL DEFAULT '',
    region TEXT NOT NULL DEFAULT '',
    postal_code TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS attributes (
    attribute_id TEXT PRIMARY KEY,
    party_id TEXT NOT NULL REFERENCES parties(party_id) ON DELETE CASCADE,
    category TEXT NOT NULL,
    value TEXT NOT NULL,
    created_at TEXT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_parties_kind ON parties(kind)`,
	`CREATE INDEX IF NOT EXISTS idx_channels_party ON contact_channels(party_id, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_addresses_party ON addresses(party_id)`,
	`CREATE INDEX IF NOT EXISTS idx_attributes_party ON attributes(party_id, category)`,
}

// Dialect is the Postgres dialect for sqlstore.
var Dialect = sqlstore.Dialect{
	Name:       types.BackendPostgres,
	DriverName: "pgx",
	DSN: func(cfg types.Config) (string, error) {
		if cfg.DSN == "" {
			return "", types.ErrDSNEmpty
		}
		return cfg.DSN, nil
	},
	Placeholder: sqlstore.DollarPlaceholder,
	Schema:      schema,
	Configure: func(db *sql.DB) {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	},
	IsDuplicate: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
	},
}

// NewBackend creates a detached Postgres-backed store.
func NewBackend() *sqlstore.Backend {
	return sqlstore.NewBackend(Dialect)
}
