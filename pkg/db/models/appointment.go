package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

// Appointment is a scheduled visit to a customer address. Each appointment
// expands into one dispatch task per storage unit.
type Appointment struct {
	ID          uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID  uuid.UUID               `gorm:"column:customer_id;type:uuid;not null"`
	PartnerID   *uuid.UUID              `gorm:"column:partner_id;type:uuid"`
	Kind        enums.AppointmentKind   `gorm:"column:kind;type:appointment_kind;not null"`
	PlanType    enums.PlanType          `gorm:"column:plan_type;type:plan_type;not null;default:'self_service'"`
	Status      enums.AppointmentStatus `gorm:"column:status;type:appointment_status;not null;default:'scheduled'"`
	ScheduledAt time.Time               `gorm:"column:scheduled_at;type:timestamptz;not null"`
	Address     types.Address           `gorm:"column:address;type:jsonb;serializer:json;not null"`
	UnitCount   int                     `gorm:"column:unit_count;not null;default:1"`
	Notes       *string                 `gorm:"column:notes"`
	Units       []StorageUnit           `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE"`
	Tasks       []DispatchTask          `gorm:"foreignKey:AppointmentID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
