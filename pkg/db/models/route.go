package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// Route is an ordered set of dispatch tasks offered to workers for a given
// service date. Offer state transitions are guarded by a conditional update
// so concurrent accepts cannot both win.
type Route struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RouteDate             time.Time         `gorm:"column:route_date;type:date;not null"`
	PartnerID             *uuid.UUID        `gorm:"column:partner_id;type:uuid"`
	AssignedWorkerID      *uuid.UUID        `gorm:"column:assigned_worker_id;type:uuid"`
	OfferStatus           enums.OfferStatus `gorm:"column:offer_status;type:offer_status;not null;default:'unsent'"`
	OfferExpiresAt        *time.Time        `gorm:"column:offer_expires_at;type:timestamptz"`
	LastOfferedWorkerID   *uuid.UUID        `gorm:"column:last_offered_worker_id;type:uuid"`
	PayoutAmount          decimal.Decimal   `gorm:"column:payout_amount;type:numeric(10,2);not null;default:0"`
	NeedsManualAssignment bool              `gorm:"column:needs_manual_assignment;not null;default:false"`
	Stops                 []RouteStop       `gorm:"foreignKey:RouteID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// RouteStop links a dispatch task into a route at a fixed position.
type RouteStop struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RouteID        uuid.UUID `gorm:"type:uuid;not null;index"`
	DispatchTaskID uuid.UUID `gorm:"type:uuid;not null"`
	Sequence       int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"type:timestamptz;default:now()"`
}
