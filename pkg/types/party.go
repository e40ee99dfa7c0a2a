package types

import (
	"strings"
	"time"
)

// Party kinds. A party starts as a prospect and may be converted once;
// there is no reverse transition.
const (
	KindProspect = "PROSPECT"
	KindCustomer = "CUSTOMER"
)

// validKinds is the set of recognized discriminator values.
var validKinds = map[string]bool{
	KindProspect: true,
	KindCustomer: true,
}

// IsValidKind reports whether kind is a recognized discriminator.
func IsValidKind(kind string) bool {
	return validKinds[kind]
}

// Party is the core record of a composite party entity. It owns its contact
// channels, addresses and attributes; deleting it cascades to them.
type Party struct {
	// PartyID is a UUID v7 generated by the caller before any child row
	// exists, so children can reference it.
	PartyID     string `json:"party_id"`
	DisplayName string `json:"display_name"`
	Kind        string `json:"kind"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`

	// SecondaryID is the id of the matching record in the secondary system.
	// Empty until conversion succeeds.
	SecondaryID string     `json:"secondary_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ConvertedAt *time.Time `json:"converted_at,omitempty"`
}

// DisplayName joins first and last name with a single space, skipping
// whichever is empty.
func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// Convert moves a prospect to customer and records the secondary-system id.
// Returns ErrInvalidTransition if the party is not a prospect and
// ErrInvalidID if secondaryID is empty. The party is unchanged on error.
func (p *Party) Convert(secondaryID string, at time.Time) error {
	if p.Kind != KindProspect {
		return ErrInvalidTransition
	}
	if secondaryID == "" {
		return ErrInvalidID
	}
	p.Kind = KindCustomer
	p.SecondaryID = secondaryID
	p.UpdatedAt = at
	p.ConvertedAt = &at
	return nil
}
