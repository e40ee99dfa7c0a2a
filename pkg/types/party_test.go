package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Jane", "Doe", "Jane Doe"},
		{"Jane", "", "Jane"},
		{"", "Doe", "Doe"},
		{"  Jane ", " Doe  ", "Jane Doe"},
		{"", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DisplayName(tt.first, tt.last))
	}
}

func TestPartyConvert(t *testing.T) {
	tests := []struct {
		name        string
		kind        string
		secondaryID string
		wantErr     error
	}{
		{name: "prospect converts", kind: KindProspect, secondaryID: "C-1"},
		{name: "customer rejected", kind: KindCustomer, secondaryID: "C-1", wantErr: ErrInvalidTransition},
		{name: "empty secondary id rejected", kind: KindProspect, wantErr: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Party{PartyID: "p-1", Kind: tt.kind}
			at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

			err := p.Convert(tt.secondaryID, at)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.kind, p.Kind, "kind should not change on error")
				assert.Empty(t, p.SecondaryID)
				assert.Nil(t, p.ConvertedAt)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, KindCustomer, p.Kind)
			assert.Equal(t, tt.secondaryID, p.SecondaryID)
			if assert.NotNil(t, p.ConvertedAt) {
				assert.Equal(t, at, *p.ConvertedAt)
			}
			assert.Equal(t, at, p.UpdatedAt)
		})
	}
}

func TestIsValidKind(t *testing.T) {
	assert.True(t, IsValidKind(KindProspect))
	assert.True(t, IsValidKind(KindCustomer))
	assert.False(t, IsValidKind("prospect"))
	assert.False(t, IsValidKind(""))
}
