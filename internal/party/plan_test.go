package party

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/partybook/pkg/types"
)

func TestDecideOp(t *testing.T) {
	tests := []struct {
		name     string
		current  map[string]any
		supplied map[string]any
		want     types.Op
	}{
		{name: "nothing supplied", current: map[string]any{"value": "a"}, want: types.OpNoOp},
		{name: "nothing supplied, no row", want: types.OpNoOp},
		{name: "no row, value supplied", supplied: map[string]any{"value": "a"}, want: types.OpInsert},
		{name: "no row, only empty values", supplied: map[string]any{"value": "", "city": ""}, want: types.OpNoOp},
		{name: "no row, one non-empty", supplied: map[string]any{"line1": "", "city": "Springfield"}, want: types.OpInsert},
		{name: "row differs", current: map[string]any{"value": "a"}, supplied: map[string]any{"value": "b"}, want: types.OpUpdateInPlace},
		{name: "row blanked", current: map[string]any{"value": "a"}, supplied: map[string]any{"value": ""}, want: types.OpUpdateInPlace},
		{name: "row matches", current: map[string]any{"value": "a"}, supplied: map[string]any{"value": "a"}, want: types.OpNoOp},
		{
			name:     "only supplied columns compared",
			current:  map[string]any{"city": "Springfield", "country": "US"},
			supplied: map[string]any{"city": "Springfield"},
			want:     types.OpNoOp,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decideOp(tt.current, tt.supplied))
		})
	}
}

func TestCorePlanDerivesDisplayName(t *testing.T) {
	p := &types.Party{PartyID: "p1", FirstName: "Jane", LastName: "Doe", DisplayName: "Jane Doe"}

	plan := corePlan(p, types.Patch{LastName: types.Some("Smith")})
	assert.Equal(t, types.OpUpdateInPlace, plan.op)
	assert.Equal(t, "Jane Smith", plan.patch["display_name"])
	assert.Equal(t, types.Filter{"party_id": "p1"}, plan.filter)

	plan = corePlan(p, types.Patch{FirstName: types.Some("Jane")})
	assert.Equal(t, types.OpNoOp, plan.op)

	plan = corePlan(p, types.Patch{Email: types.Some("x@y.z")})
	assert.Equal(t, types.OpNoOp, plan.op)
}

func TestChannelPlan(t *testing.T) {
	existing := &types.ContactChannel{ChannelID: "c1", PartyID: "p1", Kind: types.ChannelEmail, Value: "old@x.com", IsPrimary: true}

	plan := channelPlan("p1", types.ChannelEmail, existing, types.Some("new@x.com"))
	assert.Equal(t, types.OpUpdateInPlace, plan.op)
	assert.Equal(t, types.Filter{"channel_id": "c1"}, plan.filter)
	assert.Equal(t, types.ContactGroup(types.ChannelEmail), plan.group)

	plan = channelPlan("p1", types.ChannelPhone, nil, types.Some("555-1111"))
	assert.Equal(t, types.OpInsert, plan.op)
	row := plan.row.(*types.ContactChannel)
	assert.True(t, row.IsPrimary)
	assert.Equal(t, types.ChannelPhone, row.Kind)

	plan = channelPlan("p1", types.ChannelPhone, nil, types.Optional{})
	assert.Equal(t, types.OpNoOp, plan.op)
}

func TestAddressPlanInsertDefaultsRegion(t *testing.T) {
	plan := addressPlan("p1", nil, map[string]any{types.ColCity: "Springfield"})
	assert.Equal(t, types.OpInsert, plan.op)
	row := plan.row.(*types.Address)
	assert.Equal(t, "Springfield", row.City)
	assert.Equal(t, "", row.Region)
	assert.Equal(t, "p1", row.PartyID)
}
