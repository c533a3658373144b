package notify

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

// Repository covers the in-app notification rows the dispatcher writes.
type Repository interface {
	// FindUnreadGroup returns the recipient's unread notification with the
	// same type and group key, or nil when none exists.
	FindUnreadGroup(ctx context.Context, workerID uuid.UUID, typ enums.NotificationType, groupKey string) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	// BumpGroup increments the group counter and refreshes the message and
	// timestamp on an existing unread row.
	BumpGroup(ctx context.Context, id uuid.UUID, message string) error
	// ListForWorker returns a page of the worker's notifications, newest
	// first, plus the cursor for the next page when one exists.
	ListForWorker(ctx context.Context, workerID uuid.UUID, unreadOnly bool, page pagination.Params) ([]models.Notification, string, error)
	MarkRead(ctx context.Context, workerID, notificationID uuid.UUID) (int, error)
	DeleteReadOlderThan(ctx context.Context, cutoffDays int) (int64, error)

	WithTx(tx *gorm.DB) Repository
}
