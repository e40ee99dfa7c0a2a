package types

import "time"

// View is the flat, denormalized projection of a party and its child rows
// that every consumer renders. It is read-only; writing happens through
// Input and Patch.
type View struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        string            `json:"kind"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Email       string            `json:"email"`
	Phone       string            `json:"phone"`
	Line1       string            `json:"line1"`
	Line2       string            `json:"line2"`
	City        string            `json:"city"`
	Region      string            `json:"region"`
	PostalCode  string            `json:"postal_code"`
	Country     string            `json:"country"`
	Industry    string            `json:"industry"`
	Attributes  map[string]string `json:"attributes"`
	SecondaryID string            `json:"secondary_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	ConvertedAt *time.Time        `json:"converted_at,omitempty"`
}

// SecondaryRef identifies the record created in the secondary system.
type SecondaryRef struct {
	System   string    `json:"system"`
	ID       string    `json:"id"`
	LinkedAt time.Time `json:"linked_at"`
}

// ConversionCheck separates problems that stop a conversion from those the
// caller may confirm past.
type ConversionCheck struct {
	Blocking []string `json:"blocking,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ConversionResult is returned by a successful conversion.
type ConversionResult struct {
	View     *View        `json:"view"`
	Ref      SecondaryRef `json:"ref"`
	Warnings []string     `json:"warnings,omitempty"`
}
