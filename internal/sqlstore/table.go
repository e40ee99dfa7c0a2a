package sqlstore

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

var _ types.Table = (*Table)(nil)

// Table implements types.Table for one entity type.
type Table struct {
	def     *tableDef
	backend *Backend
}

// Insert stores rows one statement at a time. Rows with an empty id get a
// UUID v7 and zero timestamps are set to now; the passed rows are updated
// in place and returned.
func (t *Table) Insert(ctx context.Context, rows ...any) ([]any, error) {
	db, err := t.backend.handle()
	if err != nil {
		return nil, err
	}
	query := buildInsert(t.def, t.backend.dialect.Placeholder)
	now := t.backend.now()
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if !checkRowType(t.def, row) {
			return out, fmt.Errorf("%w: %T cannot be stored in %s", types.ErrInvalidData, row, t.def.name)
		}
		if err := t.def.prepare(row, now); err != nil {
			return out, fmt.Errorf("insert %s: %w", t.def.name, err)
		}
		if _, err := db.ExecContext(ctx, query, t.def.values(row)...); err != nil {
			if t.backend.dialect.IsDuplicate != nil && t.backend.dialect.IsDuplicate(err) {
				return out, fmt.Errorf("insert %s: %w", t.def.name, types.ErrDuplicate)
			}
			return out, fmt.Errorf("insert %s: %w", t.def.name, err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Update patches every row matching filter and returns the rows as stored
// after the update. No match returns an empty slice and no error.
func (t *Table) Update(ctx context.Context, filter types.Filter, patch map[string]any) ([]any, error) {
	db, err := t.backend.handle()
	if err != nil {
		return nil, err
	}
	query, args, err := buildUpdate(t.def, filter, patch, t.backend.dialect.Placeholder, t.backend.now())
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", t.def.name, err)
	}
	return collect(t.def, rows)
}

// Select returns rows matching filter ordered by creation time, then key.
func (t *Table) Select(ctx context.Context, filter types.Filter) ([]any, error) {
	db, err := t.backend.handle()
	if err != nil {
		return nil, err
	}
	return t.backend.selectRows(ctx, db, t.def, filter)
}

// Delete removes rows matching filter. Child tables cascade through their
// foreign keys when a party is deleted.
func (t *Table) Delete(ctx context.Context, filter types.Filter) (int, error) {
	db, err := t.backend.handle()
	if err != nil {
		return 0, err
	}
	query, args, err := buildDelete(t.def, filter, t.backend.dialect.Placeholder)
	if err != nil {
		return 0, err
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.def.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.def.name, err)
	}
	return int(n), nil
}
