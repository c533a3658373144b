package enums

import "fmt"

// EmploymentType maps to the employment_type enum in Postgres. It is the
// policy axis that decides whether a worker is asked to reconfirm schedule
// changes (direct) or only informed through their employer (partner).
type EmploymentType string

const (
	EmploymentDirect  EmploymentType = "direct"
	EmploymentPartner EmploymentType = "partner"
)

var validEmploymentTypes = []EmploymentType{
	EmploymentDirect,
	EmploymentPartner,
}

// IsValid reports whether the value matches the canonical employment_type enum.
func (e EmploymentType) IsValid() bool {
	for _, candidate := range validEmploymentTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEmploymentType converts raw strings into EmploymentType.
func ParseEmploymentType(value string) (EmploymentType, error) {
	for _, candidate := range validEmploymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid employment type %q", value)
}
