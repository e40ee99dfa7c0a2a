package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/partybook/internal/sqlstore"
	"github.com/mesh-intelligence/partybook/pkg/types"
)

// DSNEnv names the variable that enables tests against a live server.
const DSNEnv = "PARTYBOOK_TEST_PG_DSN"

func setupBackend(t *testing.T) *sqlstore.Backend {
	t.Helper()
	dsn := os.Getenv(DSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", DSNEnv)
	}
	b := NewBackend()
	require.NoError(t, b.Attach(types.Config{Backend: types.BackendPostgres, DSN: dsn}))
	t.Cleanup(func() {
		for i := len(types.StandardTableNames) - 1; i >= 0; i-- {
			b.DB().Exec("DELETE FROM " + types.StandardTableNames[i])
		}
		b.Detach()
	})
	return b
}

func TestIsDuplicate(t *testing.T) {
	assert.True(t, Dialect.IsDuplicate(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: uniqueViolation})))
	assert.False(t, Dialect.IsDuplicate(&pgconn.PgError{Code: "23503"}))
	assert.False(t, Dialect.IsDuplicate(errors.New("boom")))
}

func TestDSNRequired(t *testing.T) {
	_, err := Dialect.DSN(types.Config{Backend: types.BackendPostgres})
	assert.ErrorIs(t, err, types.ErrDSNEmpty)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$3", Dialect.Placeholder(3))
}

func TestRoundTripAndCascade(t *testing.T) {
	b := setupBackend(t)
	ctx := context.Background()
	parties, err := b.GetTable(types.TableParties)
	require.NoError(t, err)
	channels, err := b.GetTable(types.TableChannels)
	require.NoError(t, err)

	p := &types.Party{DisplayName: "Ada Lovelace", FirstName: "Ada", LastName: "Lovelace"}
	_, err = parties.Insert(ctx, p)
	require.NoError(t, err)
	_, err = channels.Insert(ctx, &types.ContactChannel{PartyID: p.PartyID, Kind: types.ChannelEmail, Value: "ada@example.com", IsPrimary: true})
	require.NoError(t, err)

	_, err = parties.Insert(ctx, &types.Party{PartyID: p.PartyID, DisplayName: "dup"})
	assert.ErrorIs(t, err, types.ErrDuplicate)

	rows, err := channels.Update(ctx, types.Filter{"party_id": p.PartyID, "kind": types.ChannelEmail, "is_primary": true},
		map[string]any{"value": "ada@lovelace.org"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada@lovelace.org", rows[0].(*types.ContactChannel).Value)

	composite, err := b.SelectComposite(ctx, p.PartyID)
	require.NoError(t, err)
	assert.Len(t, composite.Channels, 1)

	n, err := parties.Delete(ctx, types.Filter{"party_id": p.PartyID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	left, err := channels.Select(ctx, types.Filter{"party_id": p.PartyID})
	require.NoError(t, err)
	assert.Empty(t, left)
}
