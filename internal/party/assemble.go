package party

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// Assembler reads a party and its child rows and folds them into a View.
// It never writes.
type Assembler struct {
	store types.Store
}

// NewAssembler creates an assembler over store.
func NewAssembler(store types.Store) *Assembler {
	return &Assembler{store: store}
}

// Fetch returns the assembled view of a party, or an error wrapping
// types.ErrNotFound.
func (a *Assembler) Fetch(ctx context.Context, id string) (*types.View, error) {
	rows, err := a.Rows(ctx, id)
	if err != nil {
		return nil, err
	}
	view := Fold(*rows)
	return &view, nil
}

// Rows reads the core record and every child row. Stores that implement
// types.CompositeReader answer in one snapshot; others get one select per
// table.
func (a *Assembler) Rows(ctx context.Context, id string) (*types.PartyRows, error) {
	if id == "" {
		return nil, types.ErrInvalidID
	}
	if cr, ok := a.store.(types.CompositeReader); ok {
		rows, err := cr.SelectComposite(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch party %s: %w", id, err)
		}
		return rows, nil
	}

	filter := types.Filter{"party_id": id}
	parties, err := selectAs[*types.Party](ctx, a.store, types.TableParties, filter)
	if err != nil {
		return nil, fmt.Errorf("fetch party %s: %w", id, err)
	}
	if len(parties) == 0 {
		return nil, fmt.Errorf("fetch party %s: %w", id, types.ErrNotFound)
	}
	out := &types.PartyRows{Party: parties[0]}
	if out.Channels, err = selectAs[*types.ContactChannel](ctx, a.store, types.TableChannels, filter); err != nil {
		return nil, fmt.Errorf("fetch party %s: %w", id, err)
	}
	if out.Addresses, err = selectAs[*types.Address](ctx, a.store, types.TableAddresses, filter); err != nil {
		return nil, fmt.Errorf("fetch party %s: %w", id, err)
	}
	if out.Attributes, err = selectAs[*types.Attribute](ctx, a.store, types.TableAttributes, filter); err != nil {
		return nil, fmt.Errorf("fetch party %s: %w", id, err)
	}
	return out, nil
}

// Fold flattens rows into a View. Per channel kind the first primary row
// wins, even if the store holds several; the first address and the first
// row per attribute category win likewise.
func Fold(rows types.PartyRows) types.View {
	var v types.View
	if p := rows.Party; p != nil {
		v.ID = p.PartyID
		v.Name = p.DisplayName
		v.Kind = p.Kind
		v.FirstName = p.FirstName
		v.LastName = p.LastName
		v.SecondaryID = p.SecondaryID
		v.CreatedAt = p.CreatedAt
		v.UpdatedAt = p.UpdatedAt
		v.ConvertedAt = p.ConvertedAt
	}

	if c := primaryChannel(rows.Channels, types.ChannelEmail); c != nil {
		v.Email = c.Value
	}
	if c := primaryChannel(rows.Channels, types.ChannelPhone); c != nil {
		v.Phone = c.Value
	}

	if len(rows.Addresses) > 0 {
		a := rows.Addresses[0]
		v.Line1 = a.Line1
		v.Line2 = a.Line2
		v.City = a.City
		v.Region = a.Region
		v.PostalCode = a.PostalCode
		v.Country = a.Country
	}

	v.Attributes = make(map[string]string, len(rows.Attributes))
	for _, attr := range rows.Attributes {
		if _, seen := v.Attributes[attr.Category]; !seen {
			v.Attributes[attr.Category] = attr.Value
		}
	}
	v.Industry = v.Attributes[types.CategoryIndustry]
	return v
}

func primaryChannel(channels []*types.ContactChannel, kind string) *types.ContactChannel {
	for _, c := range channels {
		if c.Kind == kind && c.IsPrimary {
			return c
		}
	}
	return nil
}

// selectAs runs a Select and asserts every row to T.
func selectAs[T any](ctx context.Context, store types.Store, table string, filter types.Filter) ([]T, error) {
	tbl, err := store.GetTable(table)
	if err != nil {
		return nil, err
	}
	rows, err := tbl.Select(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		row, ok := r.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %s returned %T", types.ErrInvalidData, table, r)
		}
		out = append(out, row)
	}
	return out, nil
}
