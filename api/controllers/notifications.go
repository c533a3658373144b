package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jdmarin/boxvalet-backend/api/responses"
	"github.com/jdmarin/boxvalet-backend/api/validators"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	pkgerrors "github.com/jdmarin/boxvalet-backend/pkg/errors"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

type notificationItem struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Link       *string    `json:"link,omitempty"`
	GroupCount int        `json:"group_count"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ListNotifications returns a worker's in-app notifications, newest first.
func ListNotifications(repo notify.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workerID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("worker_id")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid worker id"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		unreadOnly := false
		if raw := strings.TrimSpace(r.URL.Query().Get("unread_only")); raw != "" {
			unreadOnly, err = strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unread_only value"))
				return
			}
		}

		page := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}
		rows, nextCursor, err := repo.ListForWorker(r.Context(), workerID, unreadOnly, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]notificationItem, 0, len(rows))
		for _, row := range rows {
			items = append(items, toNotificationItem(row))
		}
		payload := map[string]any{"notifications": items}
		if nextCursor != "" {
			payload["next_cursor"] = nextCursor
		}
		responses.WriteSuccess(w, payload)
	}
}

// MarkNotificationRead marks one of the worker's notifications read.
func MarkNotificationRead(repo notify.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		notificationID, err := uuid.Parse(chi.URLParam(r, "notificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id"))
			return
		}

		workerID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("worker_id")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid worker id"))
			return
		}

		updated, err := repo.MarkRead(r.Context(), workerID, notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if updated == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found"))
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "read"})
	}
}

func toNotificationItem(row models.Notification) notificationItem {
	return notificationItem{
		ID:         row.ID,
		Type:       string(row.Type),
		Title:      row.Title,
		Message:    row.Message,
		Link:       row.Link,
		GroupCount: row.GroupCount,
		ReadAt:     row.ReadAt,
		CreatedAt:  row.CreatedAt,
	}
}
