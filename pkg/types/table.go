package types

import (
	"context"
	"errors"
)

// Filter is an equality predicate over column names. Every key must equal
// its value for a row to match. Values are strings or bools.
type Filter map[string]any

// Table provides row-level operations for a single collection. There is no
// transaction spanning two tables, or spanning two calls on the same table.
// Rows are pointers to the entity struct that belongs to the table
// (*Party, *ContactChannel, *Address, *Attribute); callers type-assert.
type Table interface {
	// Insert stores each row in order. Rows with an empty id get a UUID v7.
	// A failure part-way leaves earlier rows stored. Returns the stored rows.
	Insert(ctx context.Context, rows ...any) ([]any, error)

	// Update applies patch (column -> value) to every row matching filter
	// and returns the updated rows. An empty filter is rejected.
	Update(ctx context.Context, filter Filter, patch map[string]any) ([]any, error)

	// Select returns every row matching filter. An empty filter returns
	// every row in the table.
	Select(ctx context.Context, filter Filter) ([]any, error)

	// Delete removes every row matching filter and returns how many were
	// removed. An empty filter is rejected.
	Delete(ctx context.Context, filter Filter) (int, error)
}

// PartyRows is every stored row that belongs to one party.
type PartyRows struct {
	Party      *Party
	Channels   []*ContactChannel
	Addresses  []*Address
	Attributes []*Attribute
}

// CompositeReader is implemented by stores that can read a party and all of
// its child rows in one consistent read. Returns ErrNotFound when the core
// row does not exist.
type CompositeReader interface {
	SelectComposite(ctx context.Context, partyID string) (*PartyRows, error)
}

// Table operation errors.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrInvalidID     = errors.New("invalid entity ID")
	ErrInvalidData   = errors.New("invalid entity data")
	ErrInvalidFilter = errors.New("invalid filter")
	ErrEmptyFilter   = errors.New("filter must not be empty")
	ErrDuplicate     = errors.New("duplicate entity")
)

// Entity method errors.
var (
	ErrInvalidKind       = errors.New("invalid party kind")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidChannel    = errors.New("invalid contact channel kind")
)
