package party

import (
	"fmt"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

// groupPlan is the write decided for one field group during Update.
type groupPlan struct {
	group types.Group
	op    types.Op
	table string
	// filter addresses the existing row for UpdateInPlace.
	filter types.Filter
	// patch holds the supplied columns for UpdateInPlace.
	patch map[string]any
	// row is the new child row for Insert.
	row any
}

// decideOp picks the write for one group. current is the existing row's
// values for the supplied columns, nil when no row exists. supplied holds
// only the columns the caller sent.
//
//   - nothing supplied: NoOp
//   - no row, every supplied value empty: NoOp
//   - no row otherwise: Insert
//   - row exists and differs: UpdateInPlace
//   - row exists and already matches: NoOp
func decideOp(current, supplied map[string]any) types.Op {
	if len(supplied) == 0 {
		return types.OpNoOp
	}
	if current == nil {
		if anyNonEmpty(supplied) {
			return types.OpInsert
		}
		return types.OpNoOp
	}
	for col, v := range supplied {
		if current[col] != v {
			return types.OpUpdateInPlace
		}
	}
	return types.OpNoOp
}

func anyNonEmpty(values map[string]any) bool {
	for _, v := range values {
		if s, ok := v.(string); !ok || s != "" {
			return true
		}
	}
	return false
}

// corePlan plans the core-record write. The display name is derived from
// the merged first and last names.
func corePlan(p *types.Party, patch types.Patch) groupPlan {
	plan := groupPlan{group: types.GroupCore, table: types.TableParties}
	if !patch.TouchesCore() {
		plan.op = types.OpNoOp
		return plan
	}
	first, last := p.FirstName, p.LastName
	if patch.FirstName.Set {
		first = patch.FirstName.Value
	}
	if patch.LastName.Set {
		last = patch.LastName.Value
	}
	supplied := map[string]any{
		"first_name":   first,
		"last_name":    last,
		"display_name": types.DisplayName(first, last),
	}
	current := map[string]any{
		"first_name":   p.FirstName,
		"last_name":    p.LastName,
		"display_name": p.DisplayName,
	}
	plan.op = decideOp(current, supplied)
	plan.filter = types.Filter{"party_id": p.PartyID}
	plan.patch = supplied
	return plan
}

// channelPlan plans the write for the primary channel of one kind.
func channelPlan(partyID, kind string, existing *types.ContactChannel, value types.Optional) groupPlan {
	plan := groupPlan{group: types.ContactGroup(kind), table: types.TableChannels}
	if !value.Set {
		plan.op = types.OpNoOp
		return plan
	}
	supplied := map[string]any{"value": value.Value}
	var current map[string]any
	if existing != nil {
		current = map[string]any{"value": existing.Value}
		plan.filter = types.Filter{"channel_id": existing.ChannelID}
	}
	plan.op = decideOp(current, supplied)
	plan.patch = supplied
	plan.row = &types.ContactChannel{PartyID: partyID, Kind: kind, Value: value.Value, IsPrimary: true}
	return plan
}

// addressPlan plans the address write from the supplied columns only.
func addressPlan(partyID string, existing *types.Address, supplied map[string]any) groupPlan {
	plan := groupPlan{group: types.GroupAddress, table: types.TableAddresses}
	var current map[string]any
	if existing != nil {
		current = addressValues(existing)
		plan.filter = types.Filter{"address_id": existing.AddressID}
	}
	plan.op = decideOp(current, supplied)
	plan.patch = supplied
	plan.row = newAddress(partyID, supplied)
	return plan
}

// attributePlan plans the write for one attribute category.
func attributePlan(partyID, category string, existing *types.Attribute, value string) groupPlan {
	plan := groupPlan{group: types.AttributeGroup(category), table: types.TableAttributes}
	supplied := map[string]any{"value": value}
	var current map[string]any
	if existing != nil {
		current = map[string]any{"value": existing.Value}
		plan.filter = types.Filter{"attribute_id": existing.AttributeID}
	}
	plan.op = decideOp(current, supplied)
	plan.patch = supplied
	plan.row = &types.Attribute{PartyID: partyID, Category: category, Value: value}
	return plan
}

func addressValues(a *types.Address) map[string]any {
	return map[string]any{
		types.ColLine1:      a.Line1,
		types.ColLine2:      a.Line2,
		types.ColCity:       a.City,
		types.ColRegion:     a.Region,
		types.ColPostalCode: a.PostalCode,
		types.ColCountry:    a.Country,
	}
}

// newAddress builds an address row from column values. Region is left
// empty when not supplied.
func newAddress(partyID string, fields map[string]any) *types.Address {
	get := func(col string) string {
		s, _ := fields[col].(string)
		return s
	}
	return &types.Address{
		PartyID:    partyID,
		Line1:      get(types.ColLine1),
		Line2:      get(types.ColLine2),
		City:       get(types.ColCity),
		Region:     get(types.ColRegion),
		PostalCode: get(types.ColPostalCode),
		Country:    get(types.ColCountry),
	}
}

func (p groupPlan) String() string {
	return fmt.Sprintf("%s:%s", p.group, p.op)
}
