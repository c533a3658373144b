package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingWindow reserves scheduling capacity around an appointment's time.
// Exactly one window exists per active appointment; moving the appointment
// moves the window with it.
type BookingWindow struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
	PartnerID     *uuid.UUID `gorm:"type:uuid"`
	SlotID        *uuid.UUID `gorm:"type:uuid"`
	WindowStart   time.Time  `gorm:"type:timestamptz;not null"`
	WindowEnd     time.Time  `gorm:"type:timestamptz;not null"`
	CreatedAt     time.Time  `gorm:"type:timestamptz;default:now()"`
	UpdatedAt     time.Time  `gorm:"type:timestamptz;default:now()"`
}
