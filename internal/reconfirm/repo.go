package reconfirm

import (
	"context"
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

// NewRepository builds the gorm-backed task repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) ListUnitTasks(ctx context.Context, appointmentID uuid.UUID, unitNumber int) ([]models.DispatchTask, error) {
	var tasks []models.DispatchTask
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND unit_number = ?", appointmentID, unitNumber).
		Order("step_number ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unit tasks")
	}
	return tasks, nil
}

func (r *repository) MarkPendingReconfirmation(ctx context.Context, appointmentID uuid.UUID, unitNumber int, workerID uuid.UUID, notifiedAt time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("appointment_id = ? AND unit_number = ?", appointmentID, unitNumber).
		Updates(map[string]interface{}{
			"notification_status":     enums.TaskNotificationPending,
			"last_notified_worker_id": workerID,
			"notified_at":             notifiedAt,
			"accepted_at":             nil,
			"declined_at":             nil,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark tasks pending reconfirmation")
	}
	return nil
}

func (r *repository) ReleaseUnitWorker(ctx context.Context, appointmentID uuid.UUID, unitNumber int, containerID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("appointment_id = ? AND unit_number = ?", appointmentID, unitNumber).
		Updates(map[string]interface{}{
			"worker_id":               nil,
			"container_id":            containerID,
			"notification_status":     enums.TaskNotificationNone,
			"last_notified_worker_id": nil,
			"notified_at":             nil,
			"accepted_at":             nil,
			"declined_at":             nil,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release unit worker")
	}
	return nil
}

func (r *repository) ResolvePending(ctx context.Context, appointmentID uuid.UUID, unitNumber int, workerID uuid.UUID, accepted bool, respondedAt time.Time) (int, error) {
	updates := map[string]interface{}{}
	if accepted {
		updates["worker_id"] = workerID
		updates["notification_status"] = enums.TaskNotificationNone
		updates["accepted_at"] = respondedAt
	} else {
		updates["notification_status"] = enums.TaskNotificationCancelled
		updates["declined_at"] = respondedAt
	}
	result := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("appointment_id = ? AND unit_number = ? AND last_notified_worker_id = ? AND notification_status = ?",
			appointmentID, unitNumber, workerID, enums.TaskNotificationPending).
		Updates(updates)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "resolve pending reconfirmation")
	}
	return int(result.RowsAffected), nil
}
