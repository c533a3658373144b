package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// AppointmentUpdatedEvent summarizes the edit that was applied.
type AppointmentUpdatedEvent struct {
	AppointmentID uuid.UUID             `json:"appointment_id"`
	CustomerID    uuid.UUID             `json:"customer_id"`
	Kind          enums.AppointmentKind `json:"kind"`
	TimeChanged   bool                  `json:"time_changed"`
	PlanChanged   bool                  `json:"plan_changed"`
	UnitsAdded    int                   `json:"units_added"`
	UnitsRemoved  int                   `json:"units_removed"`
}

// AppointmentTimeChangedEvent carries the old and new appointment times.
type AppointmentTimeChangedEvent struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	OldTime       time.Time `json:"old_time"`
	NewTime       time.Time `json:"new_time"`
}

// RouteOfferSentEvent is emitted when a route is offered to a worker.
type RouteOfferSentEvent struct {
	RouteID        uuid.UUID `json:"route_id"`
	WorkerID       uuid.UUID `json:"worker_id"`
	OfferExpiresAt time.Time `json:"offer_expires_at"`
}

// RouteOfferAcceptedEvent is emitted when a worker wins the claim race.
type RouteOfferAcceptedEvent struct {
	RouteID    uuid.UUID `json:"route_id"`
	WorkerID   uuid.UUID `json:"worker_id"`
	AcceptedAt time.Time `json:"accepted_at"`
}

// RouteOfferExpiredEvent is emitted by the sweep for each lapsed offer.
type RouteOfferExpiredEvent struct {
	RouteID   uuid.UUID `json:"route_id"`
	WorkerID  uuid.UUID `json:"worker_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// RouteNeedsAssignmentEvent is emitted when no candidate workers remain
// and the route requires manual assignment by operations.
type RouteNeedsAssignmentEvent struct {
	RouteID   uuid.UUID `json:"route_id"`
	RouteDate time.Time `json:"route_date"`
	Attempts  int       `json:"attempts"`
}
