package party

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mesh-intelligence/partybook/internal/logger"
	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/internal/storetest"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

func janeDoe() types.Input {
	return types.Input{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@x.com",
		Phone:     "555-1111",
		City:      "Springfield",
		Attributes: map[string]string{
			types.CategoryIndustry: "Retail",
		},
	}
}

func setup(t *testing.T, opts ...Option) (*Orchestrator, *sqlstore.Backend) {
	t.Helper()
	store := storetest.NewSQLite(t)
	return NewOrchestrator(store, opts...), store
}

func setupFaulty(t *testing.T, opts ...Option) (*Orchestrator, *storetest.FaultyStore, *sqlstore.Backend) {
	t.Helper()
	store := storetest.NewSQLite(t)
	faulty := storetest.NewFaultyStore(store)
	return NewOrchestrator(faulty, opts...), faulty, store
}

func countRows(t *testing.T, store types.Store, table, partyID string) int {
	t.Helper()
	tbl, err := store.GetTable(table)
	require.NoError(t, err)
	rows, err := tbl.Select(context.Background(), types.Filter{"party_id": partyID})
	require.NoError(t, err)
	return len(rows)
}

func TestCreateAssemblesView(t *testing.T) {
	o, store := setup(t)

	view, err := o.Create(context.Background(), janeDoe())
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "Jane Doe", view.Name)
	assert.Equal(t, types.KindProspect, view.Kind)
	assert.Equal(t, "jane@x.com", view.Email)
	assert.Equal(t, "555-1111", view.Phone)
	assert.Equal(t, "Springfield", view.City)
	assert.Equal(t, "", view.Region)
	assert.Equal(t, "Retail", view.Industry)
	assert.Empty(t, view.SecondaryID)

	assert.Equal(t, 2, countRows(t, store, types.TableChannels, view.ID))
	assert.Equal(t, 1, countRows(t, store, types.TableAddresses, view.ID))
	assert.Equal(t, 1, countRows(t, store, types.TableAttributes, view.ID))
}

func TestCreateWritesOnlySuppliedGroups(t *testing.T) {
	o, store := setup(t)

	view, err := o.Create(context.Background(), types.Input{LastName: "Doe", Email: "doe@x.com"})
	require.NoError(t, err)

	assert.Equal(t, "Doe", view.Name)
	assert.Equal(t, 1, countRows(t, store, types.TableChannels, view.ID))
	assert.Zero(t, countRows(t, store, types.TableAddresses, view.ID))
	assert.Zero(t, countRows(t, store, types.TableAttributes, view.ID))
	assert.Empty(t, view.Phone)
}

func TestCreateUsesGeneratedID(t *testing.T) {
	o, _ := setup(t, WithIDGenerator(func() string { return "party-1" }))

	view, err := o.Create(context.Background(), janeDoe())
	require.NoError(t, err)
	assert.Equal(t, "party-1", view.ID)

	_, err = o.Create(context.Background(), janeDoe())
	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.GroupCore, perr.Group)
	assert.ErrorIs(t, err, types.ErrDuplicate)
}

func TestCreateRejectsInvalidInputWithoutWriting(t *testing.T) {
	o, faulty, _ := setupFaulty(t)

	_, err := o.Create(context.Background(), types.Input{FirstName: "Jane"})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, faulty.Calls())
}

func TestCreateCompensatesAddressFailure(t *testing.T) {
	var created string
	o, faulty, store := setupFaulty(t, WithIDGenerator(func() string {
		created = newPartyID()
		return created
	}))
	faulty.Fail(types.TableAddresses, storetest.OpInsert, nil)

	_, err := o.Create(context.Background(), janeDoe())

	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.GroupAddress, perr.Group)
	assert.Equal(t, types.OpInsert, perr.Op)
	assert.ErrorIs(t, err, storetest.ErrInjected)

	_, err = o.Fetch(context.Background(), created)
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, err = NewAssembler(store).Fetch(context.Background(), created)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Zero(t, countRows(t, store, types.TableChannels, created), "channels cascade away")
}

// cancellingStore cancels the caller's context from inside an insert into
// one table, as an abandoned request would.
type cancellingStore struct {
	types.Store
	table  string
	cancel context.CancelFunc
}

func (s *cancellingStore) GetTable(name string) (types.Table, error) {
	tbl, err := s.Store.GetTable(name)
	if err != nil || name != s.table {
		return tbl, err
	}
	return &cancellingTable{Table: tbl, cancel: s.cancel}, nil
}

type cancellingTable struct {
	types.Table
	cancel context.CancelFunc
}

func (t *cancellingTable) Insert(ctx context.Context, _ ...any) ([]any, error) {
	t.cancel()
	return nil, ctx.Err()
}

func TestCreateCompensatesAfterCallerCancels(t *testing.T) {
	backend := storetest.NewSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var created string
	o := NewOrchestrator(
		&cancellingStore{Store: backend, table: types.TableAddresses, cancel: cancel},
		WithIDGenerator(func() string {
			created = newPartyID()
			return created
		}))

	_, err := o.Create(ctx, janeDoe())

	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.GroupAddress, perr.Group)
	assert.ErrorIs(t, err, context.Canceled)
	var cerr *types.CompensationError
	assert.False(t, errors.As(err, &cerr), "cleanup must not inherit the cancellation")

	_, err = NewAssembler(backend).Fetch(context.Background(), created)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Zero(t, countRows(t, backend, types.TableChannels, created))
}

func TestCreateAtomicity(t *testing.T) {
	groups := []struct {
		table string
		group types.Group
	}{
		{types.TableChannels, types.ContactGroup(types.ChannelEmail)},
		{types.TableAddresses, types.GroupAddress},
		{types.TableAttributes, types.AttributeGroup(types.CategoryIndustry)},
	}
	for _, g := range groups {
		t.Run(string(g.group), func(t *testing.T) {
			var created string
			o, faulty, store := setupFaulty(t, WithIDGenerator(func() string {
				created = newPartyID()
				return created
			}))
			faulty.Fail(g.table, storetest.OpInsert, nil)

			_, err := o.Create(context.Background(), janeDoe())
			var perr *types.PersistError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, g.group, perr.Group)

			_, err = NewAssembler(store).Fetch(context.Background(), created)
			assert.ErrorIs(t, err, types.ErrNotFound)
			for _, table := range []string{types.TableChannels, types.TableAddresses, types.TableAttributes} {
				assert.Zero(t, countRows(t, store, table, created), table)
			}
		})
	}
}

func TestCreateCompensationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var created string
	o, faulty, store := setupFaulty(t,
		WithLogger(logger.FromCore(core)),
		WithIDGenerator(func() string {
			created = newPartyID()
			return created
		}))
	faulty.Fail(types.TableAttributes, storetest.OpInsert, nil)
	cleanupErr := errors.New("delete refused")
	faulty.Fail(types.TableParties, storetest.OpDelete, cleanupErr)

	_, err := o.Create(context.Background(), janeDoe())

	var cerr *types.CompensationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, created, cerr.PartyID)
	assert.Equal(t, types.AttributeGroup(types.CategoryIndustry), cerr.Group)
	assert.ErrorIs(t, err, cleanupErr)
	assert.ErrorIs(t, err, storetest.ErrInjected)

	incidents := logs.FilterMessage("compensation failed").All()
	require.Len(t, incidents, 1)
	assert.Equal(t, "data_integrity", incidents[0].ContextMap()["incident"])

	// The orphan is still there with the children written before the failure.
	view, err := NewAssembler(store).Fetch(context.Background(), created)
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", view.Email)
	assert.Empty(t, view.Industry)
}

func TestCreateCoreFailureWritesNothing(t *testing.T) {
	o, faulty, _ := setupFaulty(t)
	faulty.Fail(types.TableParties, storetest.OpInsert, nil)

	_, err := o.Create(context.Background(), janeDoe())
	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.GroupCore, perr.Group)
	assert.Equal(t, []string{"insert parties"}, faulty.Calls())
}

func TestUpdateReplacesPrimaryEmail(t *testing.T) {
	o, store := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	view, err := o.Update(ctx, created.ID, types.Patch{Email: types.Some("new@x.com")})
	require.NoError(t, err)

	assert.Equal(t, "new@x.com", view.Email)
	assert.Equal(t, created.Phone, view.Phone)
	assert.Equal(t, created.City, view.City)
	assert.Equal(t, created.Industry, view.Industry)

	channels, err := store.GetTable(types.TableChannels)
	require.NoError(t, err)
	emails, err := channels.Select(ctx, types.Filter{"party_id": created.ID, "kind": types.ChannelEmail})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "new@x.com", emails[0].(*types.ContactChannel).Value)
	assert.Equal(t, 1, countRows(t, store, types.TableAddresses, created.ID))
	assert.Equal(t, 1, countRows(t, store, types.TableAttributes, created.ID))
}

func TestUpdatePresenceSemantics(t *testing.T) {
	o, store := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, types.Input{FirstName: "Jane", LastName: "Doe", Email: "jane@x.com", City: "Springfield", Country: "US"})
	require.NoError(t, err)

	t.Run("present but empty writes empty", func(t *testing.T) {
		view, err := o.Update(ctx, created.ID, types.Patch{Country: types.Some("")})
		require.NoError(t, err)
		assert.Equal(t, "", view.Country)
		assert.Equal(t, "Springfield", view.City, "absent address fields are untouched")
	})

	t.Run("absent groups are untouched", func(t *testing.T) {
		view, err := o.Update(ctx, created.ID, types.Patch{LastName: types.Some("Smith")})
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", view.Name)
		assert.Equal(t, "jane@x.com", view.Email)
	})

	t.Run("empty value without a row inserts nothing", func(t *testing.T) {
		_, err := o.Update(ctx, created.ID, types.Patch{
			Phone:      types.Some(""),
			Attributes: map[string]string{types.CategoryIndustry: ""},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, countRows(t, store, types.TableChannels, created.ID))
		assert.Zero(t, countRows(t, store, types.TableAttributes, created.ID))
	})

	t.Run("missing groups are inserted", func(t *testing.T) {
		view, err := o.Update(ctx, created.ID, types.Patch{
			Phone:      types.Some("555-2222"),
			Attributes: map[string]string{types.CategoryIndustry: "Retail", "tier": "gold"},
		})
		require.NoError(t, err)
		assert.Equal(t, "555-2222", view.Phone)
		assert.Equal(t, "Retail", view.Industry)
		assert.Equal(t, "gold", view.Attributes["tier"])
	})

	t.Run("blanking an existing email keeps the row", func(t *testing.T) {
		view, err := o.Update(ctx, created.ID, types.Patch{Email: types.Some("")})
		require.NoError(t, err)
		assert.Empty(t, view.Email)
		assert.Equal(t, 2, countRows(t, store, types.TableChannels, created.ID))
	})
}

func TestUpdateInsertsAddressWithRegionDefault(t *testing.T) {
	o, _ := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, types.Input{FirstName: "Jane", Email: "jane@x.com"})
	require.NoError(t, err)

	view, err := o.Update(ctx, created.ID, types.Patch{PostalCode: types.Some("12345")})
	require.NoError(t, err)
	assert.Equal(t, "12345", view.PostalCode)
	assert.Equal(t, "", view.Region)
}

func TestUpdateIsIdempotent(t *testing.T) {
	o, _ := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	patch := types.Patch{
		FirstName:  types.Some("Janet"),
		Email:      types.Some("janet@x.com"),
		Phone:      types.Some(""),
		Region:     types.Some("IL"),
		Attributes: map[string]string{types.CategoryIndustry: "Finance", "tier": "gold"},
	}
	once, err := o.Update(ctx, created.ID, patch)
	require.NoError(t, err)
	twice, err := o.Update(ctx, created.ID, patch)
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestUpdateFailureKeepsEarlierGroups(t *testing.T) {
	o, faulty, store := setupFaulty(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)
	faulty.Fail(types.TableAddresses, storetest.OpUpdate, nil)

	_, err = o.Update(ctx, created.ID, types.Patch{
		LastName:   types.Some("Smith"),
		Email:      types.Some("new@x.com"),
		City:       types.Some("Shelbyville"),
		Attributes: map[string]string{types.CategoryIndustry: "Finance"},
	})

	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.GroupAddress, perr.Group)
	assert.Equal(t, types.OpUpdateInPlace, perr.Op)

	view, err := NewAssembler(store).Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", view.Name, "core group committed")
	assert.Equal(t, "new@x.com", view.Email, "email group committed")
	assert.Equal(t, "Springfield", view.City, "failed group unchanged")
	assert.Equal(t, "Retail", view.Industry, "later groups not attempted")
}

func TestUpdateLookupFailure(t *testing.T) {
	o, faulty, _ := setupFaulty(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)
	faulty.Fail(types.TableAttributes, storetest.OpSelect, nil)

	_, err = o.Update(ctx, created.ID, types.Patch{Attributes: map[string]string{"tier": "gold"}})
	var perr *types.PersistError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, types.AttributeGroup("tier"), perr.Group)
	assert.Equal(t, types.OpLookup, perr.Op)
}

func TestUpdateRejectsBlankingTheOnlyName(t *testing.T) {
	o, _ := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, types.Input{FirstName: "Jane", Email: "jane@x.com"})
	require.NoError(t, err)

	_, err = o.Update(ctx, created.ID, types.Patch{FirstName: types.Some(""), Email: types.Some("new@x.com")})
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 1)
	assert.Equal(t, "name", verr.Issues[0].Field)

	view, err := o.Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", view.Name)
	assert.Equal(t, "jane@x.com", view.Email, "nothing is written")

	view, err = o.Update(ctx, created.ID, types.Patch{FirstName: types.Some(""), LastName: types.Some("Doe")})
	require.NoError(t, err)
	assert.Equal(t, "Doe", view.Name)
	assert.Empty(t, view.FirstName)
}

func TestUpdateUnknownParty(t *testing.T) {
	o, _ := setup(t)
	_, err := o.Update(context.Background(), "missing", types.Patch{FirstName: types.Some("x")})
	assert.ErrorIs(t, err, types.ErrNotFound)

	_, err = o.Update(context.Background(), "", types.Patch{})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}

func TestDelete(t *testing.T) {
	o, store := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	require.NoError(t, o.Delete(ctx, created.ID))
	_, err = o.Fetch(ctx, created.ID)
	assert.ErrorIs(t, err, types.ErrNotFound)
	for _, table := range []string{types.TableChannels, types.TableAddresses, types.TableAttributes} {
		assert.Zero(t, countRows(t, store, table, created.ID), table)
	}

	assert.ErrorIs(t, o.Delete(ctx, created.ID), types.ErrNotFound)
}

func TestLink(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	o, _ := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	view, err := o.Link(ctx, created.ID, types.SecondaryRef{System: "legacy", ID: "C-42", LinkedAt: at})
	require.NoError(t, err)
	assert.Equal(t, types.KindCustomer, view.Kind)
	assert.Equal(t, "C-42", view.SecondaryID)
	require.NotNil(t, view.ConvertedAt)
	assert.True(t, at.Equal(*view.ConvertedAt))
	assert.Equal(t, "jane@x.com", view.Email)

	_, err = o.Link(ctx, created.ID, types.SecondaryRef{ID: "C-43"})
	assert.ErrorIs(t, err, types.ErrInvalidTransition)

	after, err := o.Fetch(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "C-42", after.SecondaryID)
}

func TestLinkRequiresSecondaryID(t *testing.T) {
	o, _ := setup(t)
	ctx := context.Background()
	created, err := o.Create(ctx, janeDoe())
	require.NoError(t, err)

	_, err = o.Link(ctx, created.ID, types.SecondaryRef{})
	assert.ErrorIs(t, err, types.ErrInvalidID)
}
