package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// RouteOfferAttempt records each worker a route was offered to. The expiry
// sweep consults these rows so a worker is never re-offered the same route.
type RouteOfferAttempt struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RouteID     uuid.UUID         `gorm:"column:route_id;type:uuid;not null;index"`
	WorkerID    uuid.UUID         `gorm:"column:worker_id;type:uuid;not null"`
	Outcome     enums.OfferStatus `gorm:"column:outcome;type:offer_status;not null;default:'sent'"`
	OfferedAt   time.Time         `gorm:"column:offered_at;type:timestamptz;not null"`
	RespondedAt *time.Time        `gorm:"column:responded_at;type:timestamptz"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
