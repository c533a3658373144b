package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdmarin/boxvalet-backend/internal/appointments"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/internal/reconfirm"
	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	pkgconfirm "github.com/jdmarin/boxvalet-backend/pkg/confirm"
	"github.com/jdmarin/boxvalet-backend/pkg/config"
	"github.com/jdmarin/boxvalet-backend/pkg/db/models"
	"github.com/jdmarin/boxvalet-backend/pkg/enums"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/pagination"
)

type stubAppointmentsService struct{}

func (stubAppointmentsService) ProcessUpdate(context.Context, uuid.UUID, appointments.EditRequest) (*appointments.UpdateResult, error) {
	return &appointments.UpdateResult{Appointment: &models.Appointment{}}, nil
}

type stubOffersService struct{}

func (stubOffersService) Offer(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubOffersService) Claim(context.Context, uuid.UUID, uuid.UUID) (*routeoffers.ClaimResult, error) {
	return &routeoffers.ClaimResult{Outcome: routeoffers.ClaimAccepted}, nil
}

func (stubOffersService) Decline(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (stubOffersService) SweepExpired(context.Context) (*routeoffers.SweepResult, error) {
	return &routeoffers.SweepResult{}, nil
}

type stubReconfirmService struct{}

func (stubReconfirmService) Initiate(context.Context, reconfirm.Request) error { return nil }

func (stubReconfirmService) Resolve(context.Context, *pkgconfirm.Claims) (*reconfirm.Outcome, error) {
	return &reconfirm.Outcome{Accepted: true}, nil
}

type stubNotifyRepo struct{}

func (stubNotifyRepo) FindUnreadGroup(context.Context, uuid.UUID, enums.NotificationType, string) (*models.Notification, error) {
	return nil, nil
}
func (stubNotifyRepo) Create(context.Context, *models.Notification) error  { return nil }
func (stubNotifyRepo) BumpGroup(context.Context, uuid.UUID, string) error  { return nil }
func (stubNotifyRepo) ListForWorker(context.Context, uuid.UUID, bool, pagination.Params) ([]models.Notification, string, error) {
	return nil, "", nil
}
func (stubNotifyRepo) MarkRead(context.Context, uuid.UUID, uuid.UUID) (int, error) { return 1, nil }
func (stubNotifyRepo) DeleteReadOlderThan(context.Context, int) (int64, error)     { return 0, nil }
func (r stubNotifyRepo) WithTx(*gorm.DB) notify.Repository                         { return r }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"

	tokens, err := pkgconfirm.NewTokenManager(config.ConfirmConfig{
		Secret:      "router-test-secret",
		Issuer:      "boxvalet-test",
		TokenTTL:    time.Hour,
		LinkBaseURL: "https://confirm.test",
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	return NewRouter(cfg, logg, nil, nil, tokens,
		stubAppointmentsService{}, stubOffersService{}, stubReconfirmService{}, stubNotifyRepo{})
}

func TestRouterServesHealthAndPing(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/health/live", "/api/public/ping"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouterRejectsMalformedAppointmentID(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/appointments/not-a-uuid", strings.NewReader(`{}`))
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestRouterRoutesClaimAndDecline(t *testing.T) {
	router := newTestRouter(t)
	routeID := uuid.NewString()
	workerBody := `{"worker_id":"` + uuid.NewString() + `"}`

	for _, action := range []string{"claim", "decline"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/routes/"+routeID+"/"+action, strings.NewReader(workerBody))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", action, rec.Code)
		}
	}
}

func TestRouterUnknownPathIs404(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
