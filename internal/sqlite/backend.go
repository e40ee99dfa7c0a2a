package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// DBFile is the database file name inside the data directory.
const DBFile = "partybook.db"

// Dialect is the SQLite dialect for sqlstore.
var Dialect = sqlstore.Dialect{
	Name:        types.BackendSQLite,
	DriverName:  "sqlite",
	DSN:         dsn,
	Placeholder: sqlstore.QuestionPlaceholder,
	Schema:      schema,
	Configure: func(db *sql.DB) {
		// One writer; also keeps the pragmas on a single connection.
		db.SetMaxOpenConns(1)
	},
	IsDuplicate: isDuplicate,
}

// NewBackend creates a detached SQLite-backed store.
func NewBackend() *sqlstore.Backend {
	return sqlstore.NewBackend(Dialect)
}

func dsn(cfg types.Config) (string, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}
	path := filepath.Join(dataDir, DBFile)
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
}

func isDuplicate(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
