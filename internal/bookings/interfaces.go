package bookings

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
)

// Repository covers booking-window rows and the partner availability slots
// they reserve against.
type Repository interface {
	FindByAppointment(ctx context.Context, appointmentID uuid.UUID) (*models.BookingWindow, error)
	Create(ctx context.Context, window *models.BookingWindow) error
	Move(ctx context.Context, window *models.BookingWindow) error
	DeleteByAppointment(ctx context.Context, appointmentID uuid.UUID) error
	ListSlots(ctx context.Context, partnerID uuid.UUID) ([]models.AvailabilitySlot, error)

	WithTx(tx *gorm.DB) Repository
}
