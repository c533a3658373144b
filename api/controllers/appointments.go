package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/api/responses"
	"github.com/jdmarin/boxvalet-backend/api/validators"
	"github.com/jdmarin/boxvalet-backend/internal/appointments"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/types"
)

const maxNotesLen = 2000

type editAppointmentRequest struct {
	ScheduledAt     *time.Time     `json:"scheduled_at"`
	PlanType        *string        `json:"plan_type"`
	PartnerID       *uuid.UUID     `json:"partner_id"`
	ClearPartner    bool           `json:"clear_partner"`
	UnitCount       *int           `json:"unit_count" validate:"omitempty,min=1"`
	SelectedUnitIDs []uuid.UUID    `json:"selected_unit_ids"`
	Address         *types.Address `json:"address"`
	Notes           *string        `json:"notes"`
	Actor           *editActor     `json:"actor"`
}

type editActor struct {
	ID   uuid.UUID `json:"id" validate:"required"`
	Role string    `json:"role" validate:"required"`
}

type editAppointmentResponse struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	PlanType      string    `json:"plan_type"`
	UnitCount     int       `json:"unit_count"`
	Changed       []string  `json:"changed"`
	Partial       bool      `json:"partial"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// EditAppointment applies a partial appointment edit. Downstream dispatch
// or messaging failures do not fail the request: the datastore is already
// correct, so they come back as warnings with partial=true.
func EditAppointment(svc appointments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appointmentID, err := uuid.Parse(chi.URLParam(r, "appointmentId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid appointment id"))
			return
		}

		var body editAppointmentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		edit, err := buildEditRequest(body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ProcessUpdate(r.Context(), appointmentID, edit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildEditResponse(result))
	}
}

func buildEditRequest(body editAppointmentRequest) (appointments.EditRequest, error) {
	edit := appointments.EditRequest{
		ScheduledAt:     body.ScheduledAt,
		PartnerID:       body.PartnerID,
		ClearPartner:    body.ClearPartner,
		UnitCount:       body.UnitCount,
		SelectedUnitIDs: body.SelectedUnitIDs,
		Address:         body.Address,
	}
	if body.PlanType != nil {
		plan, err := enums.ParsePlanType(*body.PlanType)
		if err != nil {
			return appointments.EditRequest{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid plan type")
		}
		edit.PlanType = &plan
	}
	if body.Notes != nil {
		notes := validators.SanitizeString(*body.Notes, maxNotesLen)
		edit.Notes = &notes
	}
	if body.Actor != nil {
		edit.Actor = &appointments.ActorInput{ActorID: body.Actor.ID, Role: body.Actor.Role}
	}
	return edit, nil
}

func buildEditResponse(result *appointments.UpdateResult) editAppointmentResponse {
	resp := editAppointmentResponse{
		AppointmentID: result.Appointment.ID,
		ScheduledAt:   result.Appointment.ScheduledAt,
		PlanType:      string(result.Appointment.PlanType),
		UnitCount:     result.Appointment.UnitCount,
		Changed:       changedFields(result.Changes),
		Partial:       result.PartiallyFailed(),
	}
	if result.PartialErr != nil {
		resp.Warnings = []string{result.PartialErr.Error()}
	}
	return resp
}

func changedFields(changes appointments.ChangeSet) []string {
	fields := []string{}
	if changes.TimeChanged {
		fields = append(fields, "scheduled_at")
	}
	if changes.PlanChanged {
		fields = append(fields, "plan_type")
	}
	if changes.PartnerChanged {
		fields = append(fields, "partner")
	}
	if changes.AddressChanged {
		fields = append(fields, "address")
	}
	if changes.NotesChanged {
		fields = append(fields, "notes")
	}
	if changes.UnitsAdded() || changes.UnitsRemoved() {
		fields = append(fields, "units")
	}
	return fields
}
