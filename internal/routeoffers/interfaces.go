package routeoffers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
)

// Repository covers routes, their offer ledger and the worker counters the
// claim protocol touches.
type Repository interface {
	FindRoute(ctx context.Context, routeID uuid.UUID) (*models.Route, error)
	// ClaimRoute is the single conditional update at the heart of the claim
	// protocol: it succeeds only while the offer is sent, unexpired,
	// unassigned and held by this worker, and reports rows affected so the
	// caller can classify a lost race by re-reading.
	ClaimRoute(ctx context.Context, routeID, workerID uuid.UUID, now time.Time) (int64, error)
	// MarkOfferSent points the route's live offer at a worker with a fresh
	// expiry.
	MarkOfferSent(ctx context.Context, routeID, workerID uuid.UUID, expiresAt time.Time) error
	// MarkOfferExpired flips a lapsed offer to expired; conditional so a
	// racing accept wins.
	MarkOfferExpired(ctx context.Context, routeID uuid.UUID, now time.Time) (int64, error)
	// DeclineOffer releases the route if this worker still holds the live
	// offer.
	DeclineOffer(ctx context.Context, routeID, workerID uuid.UUID) (int64, error)
	// FlagManualAssignment marks a route whose candidate pool is exhausted
	// so dispatchers can pick it up by hand.
	FlagManualAssignment(ctx context.Context, routeID uuid.UUID) error
	// AssignStopTasks links the accepted worker onto every dispatch task in
	// the route.
	AssignStopTasks(ctx context.Context, routeID, workerID uuid.UUID) error
	IncrementCompletedJobs(ctx context.Context, workerID uuid.UUID) error

	RecordAttempt(ctx context.Context, attempt *models.RouteOfferAttempt) error
	ResolveAttempt(ctx context.Context, routeID, workerID uuid.UUID, outcome enums.OfferStatus, respondedAt time.Time) error
	CountAttempts(ctx context.Context, routeID uuid.UUID) (int, error)

	// ListExpiredRoutes returns routes whose live offer lapsed without an
	// assignee.
	ListExpiredRoutes(ctx context.Context, now time.Time, limit int) ([]models.Route, error)
	// NextCandidate returns the best remaining worker for a route, ordered
	// by rating then completed jobs, excluding everyone already offered.
	NextCandidate(ctx context.Context, routeID uuid.UUID) (*models.Worker, error)

	WithTx(tx *gorm.DB) Repository
}
