package types

import "time"

// Address is the postal address of a party. The model permits several rows
// per party; the orchestrator only ever reads and writes the first one.
// Region is NOT NULL in the store and is empty when unspecified.
type Address struct {
	AddressID  string    `json:"address_id"`
	PartyID    string    `json:"party_id"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2"`
	City       string    `json:"city"`
	Region     string    `json:"region"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	CreatedAt  time.Time `json:"created_at"`
}

// Address column names, used as patch keys.
const (
	ColLine1      = "line1"
	ColLine2      = "line2"
	ColCity       = "city"
	ColRegion     = "region"
	ColPostalCode = "postal_code"
	ColCountry    = "country"
)

// AddressColumns lists the writable address columns in display order.
var AddressColumns = []string{ColLine1, ColLine2, ColCity, ColRegion, ColPostalCode, ColCountry}
