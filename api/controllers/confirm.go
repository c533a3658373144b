package controllers

import (
	"net/http"
	"strings"

	"github.com/jdmarin/boxvalet-backend/api/responses"
	"github.com/jdmarin/boxvalet-backend/internal/reconfirm"
	"github.com/jdmarin/boxvalet-backend/pkg/confirm"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
)

type confirmResponse struct {
	Action       string `json:"action"`
	Accepted     bool   `json:"accepted"`
	TasksUpdated int    `json:"tasks_updated"`
}

// ConfirmCallback resolves a signed reconfirmation link. The link carries
// the action, so the same handler serves both the confirm and decline
// paths; the token decides which one actually runs.
func ConfirmCallback(tokens *confirm.TokenManager, svc reconfirm.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token query parameter is required"))
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.Resolve(r.Context(), claims)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"appointment_id": claims.AppointmentID.String(),
				"worker_id":      claims.WorkerID.String(),
				"unit_number":    claims.UnitNumber,
				"action":         string(claims.Action),
				"accepted":       outcome.Accepted,
			})
			logg.Info(ctx, "reconfirmation link resolved")
		}

		responses.WriteSuccess(w, confirmResponse{
			Action:       string(claims.Action),
			Accepted:     outcome.Accepted,
			TasksUpdated: outcome.TasksUpdated,
		})
	}
}
