package routeoffers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/metrics"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type offerNotifier interface {
	Deliver(ctx context.Context, effects notify.Effects) notify.Result
}

// ClaimOutcome classifies a claim attempt. Only Accepted means the worker
// won; every other value is a normal lost-race answer, not an error.
type ClaimOutcome string

const (
	ClaimAccepted        ClaimOutcome = "accepted"
	ClaimNotFound        ClaimOutcome = "not_found"
	ClaimAlreadyAccepted ClaimOutcome = "already_accepted"
	ClaimExpired         ClaimOutcome = "expired"
	ClaimWrongWorker     ClaimOutcome = "wrong_worker"
	ClaimWithdrawn       ClaimOutcome = "withdrawn"
)

// ClaimResult is the outcome of one claim attempt.
type ClaimResult struct {
	Outcome ClaimOutcome
	Route   *models.Route
}

// Won reports whether this worker now holds the route.
func (c ClaimResult) Won() bool {
	return c.Outcome == ClaimAccepted
}

// SweepResult summarizes one expiry sweep pass.
type SweepResult struct {
	Expired   int
	Reoffered int
	Escalated int
}

// Service drives the route offer lifecycle: offer, claim, decline, sweep.
type Service interface {
	Offer(ctx context.Context, routeID, workerID uuid.UUID) error
	Claim(ctx context.Context, routeID, workerID uuid.UUID) (*ClaimResult, error)
	Decline(ctx context.Context, routeID, workerID uuid.UUID) error
	SweepExpired(ctx context.Context) (*SweepResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	notifier offerNotifier
	metrics  *metrics.OfferMetrics
	log      *logger.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewService builds the route offer service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, notifier offerNotifier, offerMetrics *metrics.OfferMetrics, log *logger.Logger, ttl time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("route offer repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("offer notifier required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = 20 * time.Minute
	}
	return &service{
		repo:     repo,
		tx:       tx,
		outbox:   publisher,
		notifier: notifier,
		metrics:  offerMetrics,
		log:      log,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Offer sends the route to one candidate worker with a fresh expiry and
// records the attempt so the sweep never re-offers to the same worker.
func (s *service) Offer(ctx context.Context, routeID, workerID uuid.UUID) error {
	if routeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "route id required")
	}
	if workerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	var payout decimal.Decimal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		route, err := repo.FindRoute(ctx, routeID)
		if err != nil {
			return err
		}
		if route == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
		}
		if route.AssignedWorkerID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "route already assigned")
		}
		payout = route.PayoutAmount
		if err := repo.MarkOfferSent(ctx, routeID, workerID, expiresAt); err != nil {
			return err
		}
		if err := repo.RecordAttempt(ctx, &models.RouteOfferAttempt{
			RouteID:   routeID,
			WorkerID:  workerID,
			Outcome:   enums.OfferSent,
			OfferedAt: now,
		}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRouteOfferSent,
			AggregateType: enums.AggregateRoute,
			AggregateID:   routeID,
			Version:       1,
			Data: payloads.RouteOfferSentEvent{
				RouteID:        routeID,
				WorkerID:       workerID,
				OfferExpiresAt: expiresAt,
			},
		})
	})
	if err != nil {
		return err
	}

	message := fmt.Sprintf("A route is yours if you accept before %s.", expiresAt.Format("3:04 PM"))
	if payout.IsPositive() {
		message = fmt.Sprintf("A route paying $%s is yours if you accept before %s.",
			payout.StringFixed(2), expiresAt.Format("3:04 PM"))
	}

	// Delivery failures never unwind the offer; the in-app row is a
	// courtesy and the worker can still find the route in the app.
	result := s.notifier.Deliver(ctx, notify.Effects{
		InApp: []notify.InAppEffect{{
			WorkerID: workerID,
			Type:     enums.NotificationTypeRouteOffer,
			Title:    "New route offer",
			Message:  message,
		}},
	})
	if result.Failed() {
		s.log.Error(ctx, "route offer notification failed", result.Err)
	}
	return nil
}

// Claim attempts the conditional accept. Exactly one concurrent caller can
// win; everyone else receives a specific lost-race outcome.
func (s *service) Claim(ctx context.Context, routeID, workerID uuid.UUID) (*ClaimResult, error) {
	if routeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "route id required")
	}
	if workerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	now := s.now().UTC()

	var result ClaimResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.ClaimRoute(ctx, routeID, workerID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			outcome, route, err := classifyLostClaim(ctx, repo, routeID, workerID, now)
			if err != nil {
				return err
			}
			result = ClaimResult{Outcome: outcome, Route: route}
			return nil
		}

		if err := repo.AssignStopTasks(ctx, routeID, workerID); err != nil {
			return err
		}
		if err := repo.IncrementCompletedJobs(ctx, workerID); err != nil {
			return err
		}
		if err := repo.ResolveAttempt(ctx, routeID, workerID, enums.OfferAccepted, now); err != nil {
			return err
		}
		route, err := repo.FindRoute(ctx, routeID)
		if err != nil {
			return err
		}
		result = ClaimResult{Outcome: ClaimAccepted, Route: route}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRouteOfferAccepted,
			AggregateType: enums.AggregateRoute,
			AggregateID:   routeID,
			Version:       1,
			Data: payloads.RouteOfferAcceptedEvent{
				RouteID:    routeID,
				WorkerID:   workerID,
				AcceptedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncClaim(string(result.Outcome))
	return &result, nil
}

// classifyLostClaim re-reads the route to say exactly why the conditional
// update matched nothing.
func classifyLostClaim(ctx context.Context, repo Repository, routeID, workerID uuid.UUID, now time.Time) (ClaimOutcome, *models.Route, error) {
	route, err := repo.FindRoute(ctx, routeID)
	if err != nil {
		return "", nil, err
	}
	switch {
	case route == nil:
		return ClaimNotFound, nil, nil
	case route.OfferStatus == enums.OfferAccepted || route.AssignedWorkerID != nil:
		return ClaimAlreadyAccepted, route, nil
	case route.OfferStatus == enums.OfferExpired,
		route.OfferStatus == enums.OfferSent && route.OfferExpiresAt != nil && !route.OfferExpiresAt.After(now):
		return ClaimExpired, route, nil
	case route.OfferStatus == enums.OfferSent &&
		(route.LastOfferedWorkerID == nil || *route.LastOfferedWorkerID != workerID):
		return ClaimWrongWorker, route, nil
	default:
		return ClaimWithdrawn, route, nil
	}
}

// Decline releases the live offer if this worker still holds it, then
// immediately tries the next candidate.
func (s *service) Decline(ctx context.Context, routeID, workerID uuid.UUID) error {
	if routeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "route id required")
	}
	if workerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "worker id required")
	}
	now := s.now().UTC()

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.DeclineOffer(ctx, routeID, workerID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "offer is no longer held by this worker")
		}
		return repo.ResolveAttempt(ctx, routeID, workerID, enums.OfferDeclined, now)
	})
	if err != nil {
		return err
	}
	_, err = s.reofferOrEscalate(ctx, routeID)
	return err
}

// SweepExpired expires lapsed offers and hands each route to the next
// candidate, escalating routes that exhausted the pool.
func (s *service) SweepExpired(ctx context.Context) (*SweepResult, error) {
	now := s.now().UTC()
	routes, err := s.repo.ListExpiredRoutes(ctx, now, 50)
	if err != nil {
		return nil, err
	}

	result := &SweepResult{}
	for _, route := range routes {
		expired, err := s.expireRoute(ctx, route, now)
		if err != nil {
			s.log.Error(ctx, "route offer expiry failed", err)
			continue
		}
		if !expired {
			// A claim landed between the list and the update.
			continue
		}
		result.Expired++
		s.metrics.IncExpired()

		switch reoffered, err := s.reofferOrEscalate(ctx, route.ID); {
		case err != nil:
			s.log.Error(ctx, "route re-offer failed", err)
		case reoffered:
			result.Reoffered++
		default:
			result.Escalated++
		}
	}
	return result, nil
}

func (s *service) expireRoute(ctx context.Context, route models.Route, now time.Time) (bool, error) {
	var expired bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		affected, err := repo.MarkOfferExpired(ctx, route.ID, now)
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}
		expired = true
		if route.LastOfferedWorkerID != nil {
			if err := repo.ResolveAttempt(ctx, route.ID, *route.LastOfferedWorkerID, enums.OfferExpired, now); err != nil {
				return err
			}
		}
		workerID := uuid.Nil
		if route.LastOfferedWorkerID != nil {
			workerID = *route.LastOfferedWorkerID
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRouteOfferExpired,
			AggregateType: enums.AggregateRoute,
			AggregateID:   route.ID,
			Version:       1,
			Data: payloads.RouteOfferExpiredEvent{
				RouteID:   route.ID,
				WorkerID:  workerID,
				ExpiredAt: now,
			},
		})
	})
	return expired, err
}

// reofferOrEscalate offers the route to the best remaining candidate or,
// when the pool is exhausted, flags the route for manual assignment. Both
// paths succeed; the bool reports which one ran.
func (s *service) reofferOrEscalate(ctx context.Context, routeID uuid.UUID) (bool, error) {
	candidate, err := s.repo.NextCandidate(ctx, routeID)
	if err != nil {
		return false, err
	}
	if candidate != nil {
		if err := s.Offer(ctx, routeID, candidate.ID); err != nil {
			return false, err
		}
		s.metrics.IncReoffered()
		return true, nil
	}

	s.metrics.IncExhausted()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		route, err := repo.FindRoute(ctx, routeID)
		if err != nil {
			return err
		}
		if route == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
		}
		attempts, err := repo.CountAttempts(ctx, routeID)
		if err != nil {
			return err
		}
		if err := repo.FlagManualAssignment(ctx, routeID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRouteNeedsAssignment,
			AggregateType: enums.AggregateRoute,
			AggregateID:   routeID,
			Version:       1,
			Data: payloads.RouteNeedsAssignmentEvent{
				RouteID:   routeID,
				RouteDate: route.RouteDate,
				Attempts:  attempts,
			},
		})
	})
	return false, err
}
