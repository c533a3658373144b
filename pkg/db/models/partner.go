package models

import (
	"time"

	"github.com/google/uuid"
)

// Partner is a third-party moving company serving full-service customers.
// ContainerID points at the partner's container on the dispatch platform.
type Partner struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name         string    `gorm:"type:text;not null"`
	ContainerID  *string   `gorm:"type:text"`
	ContactPhone *string   `gorm:"type:text"`
	ContactEmail *string   `gorm:"type:text"`
	Timezone     string    `gorm:"type:text;not null;default:'America/Los_Angeles'"`
	Active       bool      `gorm:"not null;default:true"`
	CreatedAt    time.Time `gorm:"type:timestamptz;default:now()"`
	UpdatedAt    time.Time `gorm:"type:timestamptz;default:now()"`
}
