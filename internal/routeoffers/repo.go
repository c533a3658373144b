package routeoffers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed route offer repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) FindRoute(ctx context.Context, routeID uuid.UUID) (*models.Route, error) {
	var route models.Route
	err := r.db.WithContext(ctx).
		Preload("Stops").
		Where("id = ?", routeID).
		First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find route")
	}
	return &route, nil
}

func (r *repository) ClaimRoute(ctx context.Context, routeID, workerID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ? AND offer_status = ? AND offer_expires_at > ? AND last_offered_worker_id = ? AND assigned_worker_id IS NULL",
			routeID, enums.OfferSent, now, workerID).
		Updates(map[string]interface{}{
			"assigned_worker_id": workerID,
			"offer_status":       enums.OfferAccepted,
		})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "claim route")
	}
	return result.RowsAffected, nil
}

func (r *repository) MarkOfferSent(ctx context.Context, routeID, workerID uuid.UUID, expiresAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ?", routeID).
		Updates(map[string]interface{}{
			"offer_status":            enums.OfferSent,
			"offer_expires_at":        expiresAt,
			"last_offered_worker_id":  workerID,
			"needs_manual_assignment": false,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark offer sent")
	}
	return nil
}

func (r *repository) FlagManualAssignment(ctx context.Context, routeID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ?", routeID).
		Update("needs_manual_assignment", true).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flag manual assignment")
	}
	return nil
}

func (r *repository) MarkOfferExpired(ctx context.Context, routeID uuid.UUID, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ? AND offer_status = ? AND offer_expires_at <= ? AND assigned_worker_id IS NULL",
			routeID, enums.OfferSent, now).
		Update("offer_status", enums.OfferExpired)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "mark offer expired")
	}
	return result.RowsAffected, nil
}

func (r *repository) DeclineOffer(ctx context.Context, routeID, workerID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Route{}).
		Where("id = ? AND offer_status = ? AND last_offered_worker_id = ? AND assigned_worker_id IS NULL",
			routeID, enums.OfferSent, workerID).
		Update("offer_status", enums.OfferDeclined)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "decline offer")
	}
	return result.RowsAffected, nil
}

func (r *repository) AssignStopTasks(ctx context.Context, routeID, workerID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("id IN (?)", r.db.Model(&models.RouteStop{}).
			Select("dispatch_task_id").
			Where("route_id = ?", routeID)).
		Update("worker_id", workerID).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assign stop tasks")
	}
	return nil
}

func (r *repository) IncrementCompletedJobs(ctx context.Context, workerID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Worker{}).
		Where("id = ?", workerID).
		Update("completed_jobs", gorm.Expr("completed_jobs + 1")).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment completed jobs")
	}
	return nil
}

func (r *repository) RecordAttempt(ctx context.Context, attempt *models.RouteOfferAttempt) error {
	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record offer attempt")
	}
	return nil
}

func (r *repository) ResolveAttempt(ctx context.Context, routeID, workerID uuid.UUID, outcome enums.OfferStatus, respondedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.RouteOfferAttempt{}).
		Where("route_id = ? AND worker_id = ? AND responded_at IS NULL", routeID, workerID).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"responded_at": respondedAt,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve offer attempt")
	}
	return nil
}

func (r *repository) CountAttempts(ctx context.Context, routeID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.RouteOfferAttempt{}).
		Where("route_id = ?", routeID).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count offer attempts")
	}
	return int(count), nil
}

func (r *repository) ListExpiredRoutes(ctx context.Context, now time.Time, limit int) ([]models.Route, error) {
	if limit <= 0 {
		limit = 50
	}
	var routes []models.Route
	err := r.db.WithContext(ctx).
		Where("offer_status = ? AND offer_expires_at <= ? AND assigned_worker_id IS NULL", enums.OfferSent, now).
		Order("offer_expires_at ASC").
		Limit(limit).
		Find(&routes).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expired routes")
	}
	return routes, nil
}

func (r *repository) NextCandidate(ctx context.Context, routeID uuid.UUID) (*models.Worker, error) {
	var worker models.Worker
	err := r.db.WithContext(ctx).
		Where("active = ? AND employment_type = ?", true, enums.EmploymentDirect).
		Where("id NOT IN (?)", r.db.Model(&models.RouteOfferAttempt{}).
			Select("worker_id").
			Where("route_id = ?", routeID)).
		Order("rating DESC, completed_jobs DESC").
		First(&worker).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "next offer candidate")
	}
	return &worker, nil
}
