package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/partybook/internal/storetest"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

func TestFoldPicksFirstPrimaryPerKind(t *testing.T) {
	rows := types.PartyRows{
		Party: &types.Party{PartyID: "p1", DisplayName: "Jane Doe", Kind: types.KindProspect},
		Channels: []*types.ContactChannel{
			{Kind: types.ChannelEmail, Value: "secondary@x.com"},
			{Kind: types.ChannelEmail, Value: "first@x.com", IsPrimary: true},
			{Kind: types.ChannelEmail, Value: "second@x.com", IsPrimary: true},
			{Kind: types.ChannelPhone, Value: "555-1111", IsPrimary: true},
			{Kind: types.ChannelPhone, Value: "555-2222", IsPrimary: true},
		},
		Addresses: []*types.Address{
			{City: "Springfield", Region: ""},
			{City: "Shelbyville"},
		},
		Attributes: []*types.Attribute{
			{Category: types.CategoryIndustry, Value: "Retail"},
			{Category: types.CategoryIndustry, Value: "Finance"},
			{Category: "tier", Value: "gold"},
		},
	}

	v := Fold(rows)
	assert.Equal(t, "p1", v.ID)
	assert.Equal(t, "Jane Doe", v.Name)
	assert.Equal(t, "first@x.com", v.Email)
	assert.Equal(t, "555-1111", v.Phone)
	assert.Equal(t, "Springfield", v.City)
	assert.Equal(t, "Retail", v.Industry)
	assert.Equal(t, map[string]string{types.CategoryIndustry: "Retail", "tier": "gold"}, v.Attributes)
}

func TestFoldIgnoresNonPrimaryChannels(t *testing.T) {
	v := Fold(types.PartyRows{
		Party:    &types.Party{PartyID: "p1"},
		Channels: []*types.ContactChannel{{Kind: types.ChannelEmail, Value: "a@x.com"}},
	})
	assert.Empty(t, v.Email)
	assert.NotNil(t, v.Attributes)
}

func TestFetchWithDuplicatePrimaries(t *testing.T) {
	o, store := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	channels, err := store.GetTable(types.TableChannels)
	require.NoError(t, err)
	_, err = channels.Insert(ctx,
		&types.ContactChannel{PartyID: created.ID, Kind: types.ChannelEmail, Value: "late@x.com", IsPrimary: true,
			CreatedAt: time.Now().Add(time.Hour)},
		&types.ContactChannel{PartyID: created.ID, Kind: types.ChannelPhone, Value: "555-9999", IsPrimary: true,
			CreatedAt: time.Now().Add(time.Hour)},
	)
	require.NoError(t, err)

	view, err := o.Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", view.Email)
	assert.Equal(t, "555-1111", view.Phone)
}

func TestFetchPathsAgree(t *testing.T) {
	store := storetest.NewSQLite(t)
	o := NewOrchestrator(store)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	composite, err := NewAssembler(store).Fetch(ctx, created.ID)
	require.NoError(t, err)
	fallback, err := NewAssembler(storetest.NewFaultyStore(store)).Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, composite, fallback)
}

func TestFetchErrors(t *testing.T) {
	store := storetest.NewSQLite(t)
	faulty := storetest.NewFaultyStore(store)

	_, err := NewAssembler(store).Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = NewAssembler(faulty).Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = NewAssembler(store).Fetch(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrInvalidID)

	faulty.Fail(types.TableParties, storetest.OpSelect, nil)
	_, err = NewAssembler(faulty).Fetch(context.Background(), "any")
	assert.ErrorIs(t, err, storetest.ErrInjected)
}
