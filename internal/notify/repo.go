package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed notification repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) FindUnreadGroup(ctx context.Context, workerID uuid.UUID, typ enums.NotificationType, groupKey string) (*models.Notification, error) {
	var notification models.Notification
	err := r.db.WithContext(ctx).
		Where("worker_id = ? AND type = ? AND group_key = ? AND read_at IS NULL", workerID, typ, groupKey).
		Order("created_at DESC").
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find unread notification group")
	}
	return &notification, nil
}

func (r *repository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create notification")
	}
	return nil
}

func (r *repository) BumpGroup(ctx context.Context, id uuid.UUID, message string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"group_count": gorm.Expr("group_count + 1"),
			"message":     message,
			"created_at":  time.Now().UTC(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "bump notification group")
	}
	return nil
}

func (r *repository) ListForWorker(ctx context.Context, workerID uuid.UUID, unreadOnly bool, page pagination.Params) ([]models.Notification, string, error) {
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(page.Limit)

	query := r.db.WithContext(ctx).
		Where("worker_id = ?", workerID).
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(page.Limit))
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list notifications")
	}

	next := ""
	if len(notifications) > limit {
		notifications = notifications[:limit]
		last := notifications[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return notifications, next, nil
}

func (r *repository) MarkRead(ctx context.Context, workerID, notificationID uuid.UUID) (int, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND worker_id = ? AND read_at IS NULL", notificationID, workerID).
		Update("read_at", time.Now().UTC())
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "mark notification read")
	}
	return int(result.RowsAffected), nil
}

func (r *repository) DeleteReadOlderThan(ctx context.Context, cutoffDays int) (int64, error) {
	if cutoffDays <= 0 {
		cutoffDays = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -cutoffDays)
	result := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "delete read notifications")
	}
	return result.RowsAffected, nil
}
