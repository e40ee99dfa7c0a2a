package types

import "time"

// Contact channel kinds.
const (
	ChannelEmail = "EMAIL"
	ChannelPhone = "PHONE"
)

// ChannelKinds lists the channel kinds in the order the orchestrator writes
// them.
var ChannelKinds = []string{ChannelEmail, ChannelPhone}

// IsValidChannelKind reports whether kind is EMAIL or PHONE.
func IsValidChannelKind(kind string) bool {
	return kind == ChannelEmail || kind == ChannelPhone
}

// ContactChannel is one email address or phone number of a party. At most
// one row per kind per party may have IsPrimary set; the store does not
// enforce this.
type ContactChannel struct {
	ChannelID string    `json:"channel_id"`
	PartyID   string    `json:"party_id"`
	Kind      string    `json:"kind"`
	Value     string    `json:"value"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}
