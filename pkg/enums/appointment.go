package enums

import "fmt"

// AppointmentKind maps to the appointment_kind enum in Postgres.
type AppointmentKind string

const (
	AppointmentKindPickup   AppointmentKind = "pickup"
	AppointmentKindDelivery AppointmentKind = "delivery"
	AppointmentKindReturn   AppointmentKind = "return"
)

var validAppointmentKinds = []AppointmentKind{
	AppointmentKindPickup,
	AppointmentKindDelivery,
	AppointmentKindReturn,
}

// RequiresUnitSelection reports whether the customer picks specific stored
// units for this kind of appointment. Return appointments reference existing
// units; pickups create anonymous new ones.
func (k AppointmentKind) RequiresUnitSelection() bool {
	return k == AppointmentKindReturn || k == AppointmentKindDelivery
}

// IsValid reports whether the value matches the canonical appointment_kind enum.
func (k AppointmentKind) IsValid() bool {
	for _, candidate := range validAppointmentKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseAppointmentKind converts raw strings into AppointmentKind.
func ParseAppointmentKind(value string) (AppointmentKind, error) {
	for _, candidate := range validAppointmentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment kind %q", value)
}

// AppointmentStatus maps to the appointment_status enum in Postgres.
type AppointmentStatus string

const (
	AppointmentStatusScheduled  AppointmentStatus = "scheduled"
	AppointmentStatusInProgress AppointmentStatus = "in_progress"
	AppointmentStatusCompleted  AppointmentStatus = "completed"
	AppointmentStatusCancelled  AppointmentStatus = "cancelled"
)

var validAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusInProgress,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
}

// IsValid reports whether the value matches the canonical appointment_status enum.
func (s AppointmentStatus) IsValid() bool {
	for _, candidate := range validAppointmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseAppointmentStatus converts raw strings into AppointmentStatus.
func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	for _, candidate := range validAppointmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment status %q", value)
}
