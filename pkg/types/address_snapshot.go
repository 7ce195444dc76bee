package types

// AddressSnapshot is the immutable copy of an address frozen onto an order at
// creation time. Later edits or deletes of the source address row never change
// the meaning of a historical order. Stored as a JSON column.
type AddressSnapshot struct {
	Name       string         `json:"name"`
	Company    *string        `json:"company,omitempty"`
	Line1      string         `json:"line1"`
	Line2      *string        `json:"line2,omitempty"`
	City       string         `json:"city"`
	Region     string         `json:"region"`
	PostalCode string         `json:"postal_code"`
	Country    string         `json:"country"`
	Phone      *string        `json:"phone,omitempty"`
	Email      *string        `json:"email,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}
