package dispatchsync

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/dispatch"
)

// PlatformClient is the slice of the dispatch platform API the synchronizer
// uses. *dispatch.Client satisfies it.
type PlatformClient interface {
	CreateTask(ctx context.Context, params dispatch.TaskParams) (*dispatch.Task, error)
	UpdateTask(ctx context.Context, taskID string, params dispatch.TaskParams) (*dispatch.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	GetTask(ctx context.Context, taskID string) (*dispatch.Task, error)
}

// Repository covers the local task rows the synchronizer keeps aligned with
// the platform.
type Repository interface {
	CreateTask(ctx context.Context, task *models.DispatchTask) error
	// SaveExternalRef records the platform id and container after a
	// successful platform call.
	SaveExternalRef(ctx context.Context, taskID uuid.UUID, externalID, containerID string) error
	DeleteTask(ctx context.Context, taskID uuid.UUID) error

	WithTx(tx *gorm.DB) Repository
}
