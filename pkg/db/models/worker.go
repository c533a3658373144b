package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// Worker is a driver who serves dispatch tasks and route offers. Partner
// workers belong to a PartnerID and are informed of schedule changes;
// direct workers are asked to reconfirm.
type Worker struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name           string               `gorm:"column:name;type:text;not null"`
	Phone          string               `gorm:"column:phone;type:text;not null"`
	Email          *string              `gorm:"column:email;type:text"`
	EmploymentType enums.EmploymentType `gorm:"column:employment_type;type:employment_type;not null;default:'direct'"`
	PartnerID      *uuid.UUID           `gorm:"column:partner_id;type:uuid"`
	Rating         decimal.Decimal      `gorm:"column:rating;type:numeric(3,2);not null;default:0"`
	CompletedJobs  int                  `gorm:"column:completed_jobs;not null;default:0"`
	Active         bool                 `gorm:"column:active;not null;default:true"`
	PushToken      *string              `gorm:"column:push_token;type:text"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
