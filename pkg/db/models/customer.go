package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

// Customer is the account that owns storage units and books appointments.
type Customer struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string         `gorm:"type:text;not null"`
	Phone     string         `gorm:"type:text;not null"`
	Email     *string        `gorm:"type:text"`
	PlanType  enums.PlanType `gorm:"type:plan_type;not null;default:'self_service'"`
	Address   *types.Address `gorm:"type:jsonb;serializer:json"`
	CreatedAt time.Time      `gorm:"type:timestamptz;default:now()"`
	UpdatedAt time.Time      `gorm:"type:timestamptz;default:now()"`
}
