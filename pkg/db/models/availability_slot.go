package models

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilitySlot declares a recurring window in which a partner accepts
// appointments. Weekday follows time.Weekday; minutes are measured from
// local midnight in the partner's timezone.
type AvailabilitySlot struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	PartnerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Weekday     int       `gorm:"not null"`
	StartMinute int       `gorm:"not null"`
	EndMinute   int       `gorm:"not null"`
	Capacity    int       `gorm:"not null;default:1"`
	CreatedAt   time.Time `gorm:"type:timestamptz;default:now()"`
}
