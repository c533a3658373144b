package models

import (
	"time"

	"github.com/google/uuid"
)

// StorageUnit is one physical unit handled on an appointment. UnitNumber is
// the 1-based position within the appointment and stays a contiguous prefix:
// removing units always drops the highest numbers first.
type StorageUnit struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	AppointmentID uuid.UUID `gorm:"type:uuid;not null;index"`
	CustomerID    uuid.UUID `gorm:"type:uuid;not null"`
	UnitNumber    int       `gorm:"not null"`
	Label         *string   `gorm:"type:text"`
	SizeCode      *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"type:timestamptz;default:now()"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;default:now()"`
}
