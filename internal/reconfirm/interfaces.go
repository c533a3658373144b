package reconfirm

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
)

// Repository covers the dispatch-task writes the reconfirmation flow needs.
type Repository interface {
	// ListUnitTasks returns every task row for one unit of an appointment.
	ListUnitTasks(ctx context.Context, appointmentID uuid.UUID, unitNumber int) ([]models.DispatchTask, error)
	// MarkPendingReconfirmation stamps the unit's tasks with pending status,
	// the notified worker and the sent-at time in one update.
	MarkPendingReconfirmation(ctx context.Context, appointmentID uuid.UUID, unitNumber int, workerID uuid.UUID, notifiedAt time.Time) error
	// ReleaseUnitWorker unlinks whoever holds the unit's tasks, reverts them
	// to the given container and clears all notification bookkeeping in the
	// same update.
	ReleaseUnitWorker(ctx context.Context, appointmentID uuid.UUID, unitNumber int, containerID string) error
	// ResolvePending applies an accept or decline to the worker's pending
	// tasks on the unit and reports how many rows changed.
	ResolvePending(ctx context.Context, appointmentID uuid.UUID, unitNumber int, workerID uuid.UUID, accepted bool, respondedAt time.Time) (int, error)

	WithTx(tx *gorm.DB) Repository
}
