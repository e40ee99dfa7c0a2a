package types

import (
	"encoding/json"
	"strings"
)

// Input is the full set of values for creating a party. Empty strings mean
// "not supplied": Create writes a child row only for supplied values.
type Input struct {
	FirstName  string            `json:"first_name,omitempty" validate:"max=200"`
	LastName   string            `json:"last_name,omitempty" validate:"max=200"`
	Email      string            `json:"email,omitempty" validate:"required,email"`
	Phone      string            `json:"phone,omitempty" validate:"omitempty,phone"`
	Line1      string            `json:"line1,omitempty"`
	Line2      string            `json:"line2,omitempty"`
	City       string            `json:"city,omitempty"`
	Region     string            `json:"region,omitempty"`
	PostalCode string            `json:"postal_code,omitempty"`
	Country    string            `json:"country,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// AddressFields returns the supplied address columns. Region is always
// present, empty when unspecified, because the store requires it.
func (in Input) AddressFields() map[string]any {
	fields := make(map[string]any)
	for col, v := range map[string]string{
		ColLine1:      in.Line1,
		ColLine2:      in.Line2,
		ColCity:       in.City,
		ColRegion:     in.Region,
		ColPostalCode: in.PostalCode,
		ColCountry:    in.Country,
	} {
		if v != "" {
			fields[col] = v
		}
	}
	if len(fields) == 0 {
		return fields
	}
	if _, ok := fields[ColRegion]; !ok {
		fields[ColRegion] = ""
	}
	return fields
}

// Optional is a string field that remembers whether it was supplied.
// The zero value is "absent". Set with an empty Value means "write empty".
type Optional struct {
	Value string
	Set   bool
}

// Some returns a supplied Optional holding v.
func Some(v string) Optional {
	return Optional{Value: v, Set: true}
}

// UnmarshalJSON marks the field as supplied. A JSON null is supplied and
// empty.
func (o *Optional) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = ""
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// MarshalJSON writes the value, or null when the field is absent.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Patch is a partial update. Only supplied fields are written; a field
// group that is entirely absent is left untouched. Attribute presence is
// key presence in the map.
type Patch struct {
	FirstName  Optional          `json:"first_name"`
	LastName   Optional          `json:"last_name"`
	Email      Optional          `json:"email"`
	Phone      Optional          `json:"phone"`
	Line1      Optional          `json:"line1"`
	Line2      Optional          `json:"line2"`
	City       Optional          `json:"city"`
	Region     Optional          `json:"region"`
	PostalCode Optional          `json:"postal_code"`
	Country    Optional          `json:"country"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// TouchesCore reports whether a core-record field was supplied.
func (p Patch) TouchesCore() bool {
	return p.FirstName.Set || p.LastName.Set
}

// Channel returns the supplied value for a contact kind.
func (p Patch) Channel(kind string) Optional {
	switch kind {
	case ChannelEmail:
		return p.Email
	case ChannelPhone:
		return p.Phone
	default:
		return Optional{}
	}
}

// AddressFields returns only the supplied address columns, values trimmed.
func (p Patch) AddressFields() map[string]any {
	fields := make(map[string]any)
	for col, o := range map[string]Optional{
		ColLine1:      p.Line1,
		ColLine2:      p.Line2,
		ColCity:       p.City,
		ColRegion:     p.Region,
		ColPostalCode: p.PostalCode,
		ColCountry:    p.Country,
	} {
		if o.Set {
			fields[col] = strings.TrimSpace(o.Value)
		}
	}
	return fields
}

// IsEmpty reports whether no field group was supplied at all.
func (p Patch) IsEmpty() bool {
	return !p.TouchesCore() && !p.Email.Set && !p.Phone.Set &&
		len(p.AddressFields()) == 0 && len(p.Attributes) == 0
}
