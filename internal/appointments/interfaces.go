package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
)

// Repository covers the relational reads and writes the orchestrator needs.
type Repository interface {
	// FindAppointment loads the appointment with its units and tasks.
	FindAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error)
	FindWorkers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Worker, error)

	ListTasks(ctx context.Context, appointmentID uuid.UUID) ([]models.DispatchTask, error)
	ListTasksForUnits(ctx context.Context, appointmentID uuid.UUID, unitNumbers []int) ([]models.DispatchTask, error)

	UpdateAppointmentFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	CreateUnits(ctx context.Context, units []models.StorageUnit) error
	DeleteUnitsByID(ctx context.Context, appointmentID uuid.UUID, ids []uuid.UUID) error
	DeleteUnitsByNumber(ctx context.Context, appointmentID uuid.UUID, unitNumbers []int) error

	// RetimeUnitTasks rewrites the timing columns of one unit's task rows.
	RetimeUnitTasks(ctx context.Context, appointmentID uuid.UUID, unitNumber int, arrival, windowStart, windowEnd time.Time) error
	// ReleaseUnitWorker unlinks the unit's worker, reverts the container and
	// clears all notification bookkeeping in the same update.
	ReleaseUnitWorker(ctx context.Context, appointmentID uuid.UUID, unitNumber int, containerID string) error

	WithTx(tx *gorm.DB) Repository
}
