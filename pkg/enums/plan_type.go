package enums

import "fmt"

// PlanType maps to the plan_type enum in Postgres.
type PlanType string

const (
	// PlanSelfService appointments are fully serviced by directly-managed
	// workers; the customer loads their own units.
	PlanSelfService PlanType = "self_service"
	// PlanFullService appointments hand unit 1 to the partner company's
	// crew; remaining units stay with the default pool.
	PlanFullService PlanType = "full_service"
)

var validPlanTypes = []PlanType{
	PlanSelfService,
	PlanFullService,
}

// IsValid reports whether the value matches the canonical plan_type enum.
func (p PlanType) IsValid() bool {
	for _, candidate := range validPlanTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePlanType converts raw strings into PlanType.
func ParsePlanType(value string) (PlanType, error) {
	for _, candidate := range validPlanTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid plan type %q", value)
}
