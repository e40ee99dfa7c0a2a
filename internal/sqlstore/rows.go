package sqlstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// tableDef maps one entity struct onto one SQL table. Columns are listed in
// the order values returns them and scan reads them.
type tableDef struct {
	name      string
	key       string
	columns   []string
	patchable map[string]bool
	touch     string // column set to now on every Update; empty for none
	newRow    func() any
	prepare   func(row any, now time.Time) error
	values    func(row any) []any
	scan      func(sc scanner) (any, error)
}

func (d *tableDef) hasColumn(col string) bool {
	for _, c := range d.columns {
		if c == col {
			return true
		}
	}
	return false
}

// newUUID generates a UUID v7 string, falling back to v4.
func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamps are stored as RFC 3339 text in UTC; the empty string stands for
// "unset" so the same DDL works on SQLite and Postgres.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// bindValue converts a patch value into a driver argument.
func bindValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string, bool:
		return x, nil
	case time.Time:
		return formatTime(x), nil
	case *time.Time:
		return formatTimePtr(x), nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", types.ErrInvalidData, v)
	}
}

var partiesDef = &tableDef{
	name: types.TableParties,
	key:  "party_id",
	columns: []string{
		"party_id", "display_name", "kind", "first_name", "last_name",
		"secondary_id", "created_at", "updated_at", "converted_at",
	},
	patchable: map[string]bool{
		"display_name": true, "kind": true, "first_name": true,
		"last_name": true, "secondary_id": true, "converted_at": true,
	},
	touch:  "updated_at",
	newRow: func() any { return &types.Party{} },
	prepare: func(row any, now time.Time) error {
		p := row.(*types.Party)
		if p.PartyID == "" {
			p.PartyID = newUUID()
		}
		if p.Kind == "" {
			p.Kind = types.KindProspect
		}
		if !types.IsValidKind(p.Kind) {
			return types.ErrInvalidKind
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}
		return nil
	},
	values: func(row any) []any {
		p := row.(*types.Party)
		return []any{
			p.PartyID, p.DisplayName, p.Kind, p.FirstName, p.LastName,
			p.SecondaryID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt), formatTimePtr(p.ConvertedAt),
		}
	},
	scan: func(sc scanner) (any, error) {
		var p types.Party
		var created, updated, converted string
		if err := sc.Scan(&p.PartyID, &p.DisplayName, &p.Kind, &p.FirstName, &p.LastName,
			&p.SecondaryID, &created, &updated, &converted); err != nil {
			return nil, err
		}
		var err error
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing party created_at: %w", err)
		}
		if p.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("parsing party updated_at: %w", err)
		}
		if p.ConvertedAt, err = parseTimePtr(converted); err != nil {
			return nil, fmt.Errorf("parsing party converted_at: %w", err)
		}
		return &p, nil
	},
}

var channelsDef = &tableDef{
	name:      types.TableChannels,
	key:       "channel_id",
	columns:   []string{"channel_id", "party_id", "kind", "value", "is_primary", "created_at"},
	patchable: map[string]bool{"value": true, "is_primary": true},
	newRow:    func() any { return &types.ContactChannel{} },
	prepare: func(row any, now time.Time) error {
		c := row.(*types.ContactChannel)
		if c.PartyID == "" {
			return types.ErrInvalidID
		}
		if !types.IsValidChannelKind(c.Kind) {
			return types.ErrInvalidChannel
		}
		if c.ChannelID == "" {
			c.ChannelID = newUUID()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		return nil
	},
	values: func(row any) []any {
		c := row.(*types.ContactChannel)
		return []any{c.ChannelID, c.PartyID, c.Kind, c.Value, c.IsPrimary, formatTime(c.CreatedAt)}
	},
	scan: func(sc scanner) (any, error) {
		var c types.ContactChannel
		var created string
		if err := sc.Scan(&c.ChannelID, &c.PartyID, &c.Kind, &c.Value, &c.IsPrimary, &created); err != nil {
			return nil, err
		}
		var err error
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing channel created_at: %w", err)
		}
		return &c, nil
	},
}

var addressesDef = &tableDef{
	name: types.TableAddresses,
	key:  "address_id",
	columns: []string{
		"address_id", "party_id", "line1", "line2", "city", "region",
		"postal_code", "country", "created_at",
	},
	patchable: map[string]bool{
		types.ColLine1: true, types.ColLine2: true, types.ColCity: true,
		types.ColRegion: true, types.ColPostalCode: true, types.ColCountry: true,
	},
	newRow: func() any { return &types.Address{} },
	prepare: func(row any, now time.Time) error {
		a := row.(*types.Address)
		if a.PartyID == "" {
			return types.ErrInvalidID
		}
		if a.AddressID == "" {
			a.AddressID = newUUID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		return nil
	},
	values: func(row any) []any {
		a := row.(*types.Address)
		return []any{
			a.AddressID, a.PartyID, a.Line1, a.Line2, a.City, a.Region,
			a.PostalCode, a.Country, formatTime(a.CreatedAt),
		}
	},
	scan: func(sc scanner) (any, error) {
		var a types.Address
		var created string
		if err := sc.Scan(&a.AddressID, &a.PartyID, &a.Line1, &a.Line2, &a.City, &a.Region,
			&a.PostalCode, &a.Country, &created); err != nil {
			return nil, err
		}
		var err error
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing address created_at: %w", err)
		}
		return &a, nil
	},
}

var attributesDef = &tableDef{
	name:      types.TableAttributes,
	key:       "attribute_id",
	columns:   []string{"attribute_id", "party_id", "category", "value", "created_at"},
	patchable: map[string]bool{"value": true},
	newRow:    func() any { return &types.Attribute{} },
	prepare: func(row any, now time.Time) error {
		a := row.(*types.Attribute)
		if a.PartyID == "" {
			return types.ErrInvalidID
		}
		if a.Category == "" {
			return types.ErrInvalidData
		}
		if a.AttributeID == "" {
			a.AttributeID = newUUID()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		return nil
	},
	values: func(row any) []any {
		a := row.(*types.Attribute)
		return []any{a.AttributeID, a.PartyID, a.Category, a.Value, formatTime(a.CreatedAt)}
	},
	scan: func(sc scanner) (any, error) {
		var a types.Attribute
		var created string
		if err := sc.Scan(&a.AttributeID, &a.PartyID, &a.Category, &a.Value, &created); err != nil {
			return nil, err
		}
		var err error
		if a.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing attribute created_at: %w", err)
		}
		return &a, nil
	},
}

// tableDefs indexes every definition by table name.
var tableDefs = map[string]*tableDef{
	types.TableParties:    partiesDef,
	types.TableChannels:   channelsDef,
	types.TableAddresses:  addressesDef,
	types.TableAttributes: attributesDef,
}

// checkRowType reports whether row is the entity pointer the table stores.
func checkRowType(def *tableDef, row any) bool {
	switch r := row.(type) {
	case *types.Party:
		return r != nil && def == partiesDef
	case *types.ContactChannel:
		return r != nil && def == channelsDef
	case *types.Address:
		return r != nil && def == addressesDef
	case *types.Attribute:
		return r != nil && def == attributesDef
	default:
		return false
	}
}
