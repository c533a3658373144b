package dispatchsync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
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

func (r *repository) CreateTask(ctx context.Context, task *models.DispatchTask) error {
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create dispatch task")
	}
	return nil
}

func (r *repository) SaveExternalRef(ctx context.Context, taskID uuid.UUID, externalID, containerID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"external_id":  externalID,
			"container_id": containerID,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save task external ref")
	}
	return nil
}

func (r *repository) DeleteTask(ctx context.Context, taskID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("id = ?", taskID).
		Delete(&models.DispatchTask{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete dispatch task")
	}
	return nil
}
