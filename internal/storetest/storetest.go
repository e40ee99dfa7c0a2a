// Package storetest provides store fixtures for tests: a throwaway SQLite
// store and a wrapper that injects failures per table and operation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/partybook/internal/sqlite"
	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// ErrInjected is returned by operations a FaultyStore was told to fail.
var ErrInjected = errors.New("injected failure")

// NewSQLite attaches a SQLite store in a temp dir and detaches it on cleanup.
func NewSQLite(t testing.TB) *sqlstore.Backend {
	t.Helper()
	b := sqlite.NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { b.Detach() })
	return b
}

// Operation names a Table method.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpSelect Operation = "select"
	OpDelete Operation = "delete"
)

type fault struct {
	table string
	op    Operation
}

// FaultyStore wraps a Store and fails chosen (table, operation) pairs. It
// deliberately does not implement types.CompositeReader, so readers fall
// back to per-table selects.
type FaultyStore struct {
	inner types.Store

	mu     sync.Mutex
	faults map[fault]error
	calls  []string
}

// NewFaultyStore wraps inner.
func NewFaultyStore(inner types.Store) *FaultyStore {
	return &FaultyStore{inner: inner, faults: make(map[fault]error)}
}

// Fail makes every op on table return err (ErrInjected when nil).
func (f *FaultyStore) Fail(table string, op Operation, err error) {
	if err == nil {
		err = ErrInjected
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[fault{table, op}] = err
}

// Heal clears every injected failure.
func (f *FaultyStore) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[fault]error)
}

// Calls returns "op table" for every call made through the wrapper.
func (f *FaultyStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *FaultyStore) check(table string, op Operation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, string(op)+" "+table)
	return f.faults[fault{table, op}]
}

func (f *FaultyStore) GetTable(name string) (types.Table, error) {
	t, err := f.inner.GetTable(name)
	if err != nil {
		return nil, err
	}
	return &faultyTable{name: name, inner: t, store: f}, nil
}

func (f *FaultyStore) Attach(config types.Config) error { return f.inner.Attach(config) }

func (f *FaultyStore) Detach() error { return f.inner.Detach() }

type faultyTable struct {
	name  string
	inner types.Table
	store *FaultyStore
}

func (t *faultyTable) Insert(ctx context.Context, rows ...any) ([]any, error) {
	if err := t.store.check(t.name, OpInsert); err != nil {
		return nil, err
	}
	return t.inner.Insert(ctx, rows...)
}

func (t *faultyTable) Update(ctx context.Context, filter types.Filter, patch map[string]any) ([]any, error) {
	if err := t.store.check(t.name, OpUpdate); err != nil {
		return nil, err
	}
	return t.inner.Update(ctx, filter, patch)
}

func (t *faultyTable) Select(ctx context.Context, filter types.Filter) ([]any, error) {
	if err := t.store.check(t.name, OpSelect); err != nil {
		return nil, err
	}
	return t.inner.Select(ctx, filter)
}

func (t *faultyTable) Delete(ctx context.Context, filter types.Filter) (int, error) {
	if err := t.store.check(t.name, OpDelete); err != nil {
		return 0, err
	}
	return t.inner.Delete(ctx, filter)
}
