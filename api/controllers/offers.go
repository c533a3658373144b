package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/api/responses"
	"github.com/jdmarin/boxvalet-backend/api/validators"
	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
)

type offerActionRequest struct {
	WorkerID uuid.UUID `json:"worker_id" validate:"required"`
}

type claimResponse struct {
	Outcome  string     `json:"outcome"`
	Won      bool       `json:"won"`
	RouteID  uuid.UUID  `json:"route_id"`
	WorkerID *uuid.UUID `json:"assigned_worker_id,omitempty"`
}

// ClaimRoute lets a worker attempt to win an offered route. Losing the race
// is a 200 with won=false, not an error: the client shows "already taken"
// either way.
func ClaimRoute(svc routeoffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routeID, err := uuid.Parse(chi.URLParam(r, "routeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid route id"))
			return
		}

		var body offerActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Claim(r.Context(), routeID, body.WorkerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if result.Outcome == routeoffers.ClaimNotFound {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route offer not found"))
			return
		}

		resp := claimResponse{
			Outcome: string(result.Outcome),
			Won:     result.Won(),
			RouteID: routeID,
		}
		if result.Route != nil {
			resp.WorkerID = result.Route.AssignedWorkerID
		}
		responses.WriteSuccess(w, resp)
	}
}

// DeclineRoute records a worker's refusal so the sweep can move on early.
func DeclineRoute(svc routeoffers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routeID, err := uuid.Parse(chi.URLParam(r, "routeId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid route id"))
			return
		}

		var body offerActionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Decline(r.Context(), routeID, body.WorkerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "declined"})
	}
}
