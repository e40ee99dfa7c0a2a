package types

import "time"

// Known attribute categories.
const (
	CategoryIndustry = "industry"
)

// Attribute is a freeform value tagged with a category. At most one row per
// (party, category).
type Attribute struct {
	AttributeID string    `json:"attribute_id"`
	PartyID     string    `json:"party_id"`
	Category    string    `json:"category"`
	Value       string    `json:"value"`
	CreatedAt   time.Time `json:"created_at"`
}
