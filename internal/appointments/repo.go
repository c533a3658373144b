package appointments

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

// NewRepository builds the gorm-backed appointment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) FindAppointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appointment models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("unit_number ASC") }).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("unit_number ASC, step_number ASC") }).
		Where("id = ?", id).
		First(&appointment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find appointment")
	}
	return &appointment, nil
}

func (r *repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find customer")
	}
	return &customer, nil
}

func (r *repository) FindPartner(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&partner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find partner")
	}
	return &partner, nil
}

func (r *repository) FindWorkers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Worker, error) {
	out := make(map[uuid.UUID]models.Worker, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var workers []models.Worker
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&workers).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find workers")
	}
	for _, worker := range workers {
		out[worker.ID] = worker
	}
	return out, nil
}

func (r *repository) ListTasks(ctx context.Context, appointmentID uuid.UUID) ([]models.DispatchTask, error) {
	var tasks []models.DispatchTask
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("unit_number ASC, step_number ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list tasks")
	}
	return tasks, nil
}

func (r *repository) ListTasksForUnits(ctx context.Context, appointmentID uuid.UUID, unitNumbers []int) ([]models.DispatchTask, error) {
	if len(unitNumbers) == 0 {
		return nil, nil
	}
	var tasks []models.DispatchTask
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND unit_number IN ?", appointmentID, unitNumbers).
		Order("unit_number ASC, step_number ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list unit tasks")
	}
	return tasks, nil
}

func (r *repository) UpdateAppointmentFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(fields).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update appointment")
	}
	return nil
}

func (r *repository) CreateUnits(ctx context.Context, units []models.StorageUnit) error {
	if len(units) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&units).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create storage units")
	}
	return nil
}

func (r *repository) DeleteUnitsByID(ctx context.Context, appointmentID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND id IN ?", appointmentID, ids).
		Delete(&models.StorageUnit{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete storage units")
	}
	return nil
}

func (r *repository) DeleteUnitsByNumber(ctx context.Context, appointmentID uuid.UUID, unitNumbers []int) error {
	if len(unitNumbers) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Where("appointment_id = ? AND unit_number IN ?", appointmentID, unitNumbers).
		Delete(&models.StorageUnit{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete storage units")
	}
	return nil
}

func (r *repository) RetimeUnitTasks(ctx context.Context, appointmentID uuid.UUID, unitNumber int, arrival, windowStart, windowEnd time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.DispatchTask{}).
		Where("appointment_id = ? AND unit_number = ?", appointmentID, unitNumber).
		Updates(map[string]interface{}{
			"arrival_at":   arrival,
			"window_start": windowStart,
			"window_end":   windowEnd,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "retime unit tasks")
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
