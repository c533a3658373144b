package bookings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
)

// Action names what Reconcile did to the appointment's booking window.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreated Action = "created"
	ActionMoved   Action = "moved"
	ActionDeleted Action = "deleted"
)

// ReconcileInput is the post-mutation appointment state the window must match.
type ReconcileInput struct {
	AppointmentID uuid.UUID
	PartnerID     *uuid.UUID
	ScheduledAt   time.Time
}

// Result reports the reconciliation outcome.
type Result struct {
	Action Action
	// NoAvailability is set when the window was deleted because the new
	// time falls outside every declared partner slot.
	NoAvailability bool
}

// Manager keeps the partner time reservation in step with the appointment.
type Manager interface {
	Reconcile(ctx context.Context, input ReconcileInput) (*Result, error)
}

type manager struct {
	repo   Repository
	radius time.Duration
}

// NewManager builds the booking window manager. Radius is how far the
// reserved interval extends on each side of the appointment time.
func NewManager(repo Repository, radius time.Duration) (Manager, error) {
	if repo == nil {
		return nil, fmt.Errorf("bookings repository required")
	}
	if radius <= 0 {
		radius = time.Hour
	}
	return &manager{repo: repo, radius: radius}, nil
}

// Reconcile creates, moves or deletes the appointment's single booking
// window. No partner means no reservation; a partner whose availability no
// longer covers the appointment time also loses the reservation.
func (m *manager) Reconcile(ctx context.Context, input ReconcileInput) (*Result, error) {
	if input.AppointmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}

	existing, err := m.repo.FindByAppointment(ctx, input.AppointmentID)
	if err != nil {
		return nil, err
	}

	if input.PartnerID == nil {
		if existing == nil {
			return &Result{Action: ActionNone}, nil
		}
		if err := m.repo.DeleteByAppointment(ctx, input.AppointmentID); err != nil {
			return nil, err
		}
		return &Result{Action: ActionDeleted}, nil
	}

	slots, err := m.repo.ListSlots(ctx, *input.PartnerID)
	if err != nil {
		return nil, err
	}
	slot := matchSlot(slots, input.ScheduledAt)
	if slot == nil {
		if existing == nil {
			return &Result{Action: ActionNone, NoAvailability: true}, nil
		}
		if err := m.repo.DeleteByAppointment(ctx, input.AppointmentID); err != nil {
			return nil, err
		}
		return &Result{Action: ActionDeleted, NoAvailability: true}, nil
	}

	start := input.ScheduledAt.Add(-m.radius)
	end := input.ScheduledAt.Add(m.radius)

	if existing == nil {
		window := &models.BookingWindow{
			AppointmentID: input.AppointmentID,
			PartnerID:     input.PartnerID,
			SlotID:        &slot.ID,
			WindowStart:   start,
			WindowEnd:     end,
		}
		if err := m.repo.Create(ctx, window); err != nil {
			return nil, err
		}
		return &Result{Action: ActionCreated}, nil
	}

	if existing.WindowStart.Equal(start) && existing.WindowEnd.Equal(end) &&
		existing.PartnerID != nil && *existing.PartnerID == *input.PartnerID {
		return &Result{Action: ActionNone}, nil
	}

	existing.PartnerID = input.PartnerID
	existing.SlotID = &slot.ID
	existing.WindowStart = start
	existing.WindowEnd = end
	if err := m.repo.Move(ctx, existing); err != nil {
		return nil, err
	}
	return &Result{Action: ActionMoved}, nil
}

// matchSlot finds the first weekly slot covering the scheduled time.
func matchSlot(slots []models.AvailabilitySlot, at time.Time) *models.AvailabilitySlot {
	weekday := int(at.Weekday())
	minute := at.Hour()*60 + at.Minute()
	for i := range slots {
		slot := &slots[i]
		if slot.Weekday != weekday {
			continue
		}
		if minute >= slot.StartMinute && minute < slot.EndMinute {
			return slot
		}
	}
	return nil
}
