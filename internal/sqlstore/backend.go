// Package sqlstore implements the primary store's Store and Table contracts
// over database/sql. A Dialect supplies the driver, DSN, DDL and parameter
// style; internal/sqlite and internal/postgres are the two dialects.
//
// Every Table call is one statement against one table. The only multi-table
// work is SelectComposite, which reads inside a single transaction to get a
// consistent snapshot and never writes.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

var (
	_ types.Store           = (*Backend)(nil)
	_ types.CompositeReader = (*Backend)(nil)
)

// Dialect describes one SQL engine.
type Dialect struct {
	// Name is the types.Config backend name this dialect serves.
	Name string
	// DriverName is passed to sql.Open.
	DriverName string
	// DSN derives the connection string from the config. It may create
	// directories the engine needs.
	DSN func(cfg types.Config) (string, error)
	// Placeholder renders the n-th (1-based) statement parameter.
	Placeholder func(n int) string
	// Schema lists idempotent DDL statements applied on Attach.
	Schema []string
	// Configure tunes the pool after opening. Optional.
	Configure func(db *sql.DB)
	// IsDuplicate reports whether err is a primary-key or unique violation.
	// Optional.
	IsDuplicate func(err error) bool
}

// Backend implements types.Store over a database/sql handle.
type Backend struct {
	mu       sync.RWMutex
	dialect  Dialect
	attached bool
	config   types.Config
	db       *sql.DB
	tables   map[string]*Table
	now      func() time.Time
}

// NewBackend creates a backend for the given dialect. The backend is not
// attached; call Attach with a Config to initialize.
func NewBackend(d Dialect) *Backend {
	return &Backend{
		dialect: d,
		tables:  make(map[string]*Table),
		now:     time.Now,
	}
}

// GetTable returns the Table for the given name.
// Returns ErrStoreDetached if the backend is not attached and
// ErrTableNotFound if the name is not a standard table.
func (b *Backend) GetTable(name string) (types.Table, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreDetached
	}
	table, ok := b.tables[name]
	if !ok {
		return nil, types.ErrTableNotFound
	}
	return table, nil
}

// Attach opens the database, applies the schema and creates the table
// accessors. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != b.dialect.Name {
		return fmt.Errorf("%w: %s backend cannot attach %q", types.ErrBackendUnknown, b.dialect.Name, config.Backend)
	}

	dsn, err := b.dialect.DSN(config)
	if err != nil {
		return fmt.Errorf("resolve %s dsn: %w", b.dialect.Name, err)
	}
	db, err := sql.Open(b.dialect.DriverName, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", b.dialect.Name, err)
	}
	if b.dialect.Configure != nil {
		b.dialect.Configure(db)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping %s: %w", b.dialect.Name, err)
	}
	for _, stmt := range b.dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("apply schema: %w", err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true
	for _, name := range types.StandardTableNames {
		b.tables[name] = &Table{def: tableDefs[name], backend: b}
	}
	return nil
}

// Detach closes the database. Idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	b.tables = make(map[string]*Table)
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// DB exposes the underlying handle for tests and maintenance.
func (b *Backend) DB() *sql.DB {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.db
}

// handle returns the open database or ErrStoreDetached.
func (b *Backend) handle() (*sql.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.attached || b.db == nil {
		return nil, types.ErrStoreDetached
	}
	return b.db, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (b *Backend) selectRows(ctx context.Context, q queryer, def *tableDef, filter types.Filter) ([]any, error) {
	query, args, err := buildSelect(def, filter, b.dialect.Placeholder)
	if err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", def.name, err)
	}
	return collect(def, rows)
}

// collect scans and closes rows. It never returns a nil slice.
func collect(def *tableDef, rows *sql.Rows) ([]any, error) {
	defer rows.Close()
	results := []any{}
	for rows.Next() {
		row, err := def.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", def.name, err)
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", def.name, err)
	}
	return results, nil
}

// SelectComposite reads a party and all of its child rows inside one
// read-only snapshot. Returns ErrNotFound when the party does not exist.
func (b *Backend) SelectComposite(ctx context.Context, partyID string) (*types.PartyRows, error) {
	if partyID == "" {
		return nil, types.ErrInvalidID
	}
	db, err := b.handle()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	defer tx.Rollback()

	byParent := types.Filter{"party_id": partyID}
	parties, err := b.selectRows(ctx, tx, partiesDef, byParent)
	if err != nil {
		return nil, err
	}
	if len(parties) == 0 {
		return nil, types.ErrNotFound
	}
	out := &types.PartyRows{Party: parties[0].(*types.Party)}

	channels, err := b.selectRows(ctx, tx, channelsDef, byParent)
	if err != nil {
		return nil, err
	}
	for _, r := range channels {
		out.Channels = append(out.Channels, r.(*types.ContactChannel))
	}
	addresses, err := b.selectRows(ctx, tx, addressesDef, byParent)
	if err != nil {
		return nil, err
	}
	for _, r := range addresses {
		out.Addresses = append(out.Addresses, r.(*types.Address))
	}
	attributes, err := b.selectRows(ctx, tx, attributesDef, byParent)
	if err != nil {
		return nil, err
	}
	for _, r := range attributes {
		out.Attributes = append(out.Attributes, r.(*types.Attribute))
	}
	return out, nil
}
