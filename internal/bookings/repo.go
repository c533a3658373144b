package bookings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds the gorm-backed booking repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.BookingWindow, error) {
	var window models.BookingWindow
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find booking window")
	}
	return &window, nil
}

func (r *repository) Create(ctx context.Context, window *models.BookingWindow) error {
	if err := r.db.WithContext(ctx).Create(window).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create booking window")
	}
	return nil
}

func (r *repository) Move(ctx context.Context, window *models.BookingWindow) error {
	err := r.db.WithContext(ctx).
		Model(&models.BookingWindow{}).
		Where("id = ?", window.ID).
		Updates(map[string]interface{}{
			"partner_id":   window.PartnerID,
			"slot_id":      window.SlotID,
			"window_start": window.WindowStart,
			"window_end":   window.WindowEnd,
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "move booking window")
	}
	return nil
}

func (r *repository) DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Delete(&models.BookingWindow{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete booking window")
	}
	return nil
}

func (r *repository) ListSlots(ctx context.Context, partnerID uuid.UUID) ([]models.AvailabilitySlot, error) {
	var slots []models.AvailabilitySlot
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("weekday ASC, start_minute ASC").
		Find(&slots).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list availability slots")
	}
	return slots, nil
}
