package types

import "strings"

// Address is the structured service address stored as jsonb on customers
// and appointments. Lat/Lng are filled by the geocoder when available.
type Address struct {
	Line1      string   `json:"line1"`
	Line2      string   `json:"line2,omitempty"`
	City       string   `json:"city"`
	Region     string   `json:"region"`
	PostalCode string   `json:"postal_code"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// SingleLine renders the address the way external APIs expect it.
func (a Address) SingleLine() string {
	parts := make([]string, 0, 5)
	for _, part := range []string{a.Line1, a.Line2, a.City, a.Region, a.PostalCode} {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, ", ")
}

// JSONMap is a free-form jsonb column.
type JSONMap map[string]any
