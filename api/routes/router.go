package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jdmarin/boxvalet-backend/api/controllers"
	"github.com/jdmarin/boxvalet-backend/api/middleware"
	"github.com/jdmarin/boxvalet-backend/internal/appointments"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/internal/reconfirm"
	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	"github.com/jdmarin/boxvalet-backend/pkg/confirm"
	"github.com/jdmarin/boxvalet-backend/pkg/config"
	"github.com/jdmarin/boxvalet-backend/pkg/db"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	tokens *confirm.TokenManager,
	appointmentsService appointments.Service,
	offersService routeoffers.Service,
	reconfirmService reconfirm.Service,
	notificationsRepo notify.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	confirmPolicy := middleware.NewConfirmRateLimitPolicy(
		cfg.ConfirmRateLimit.Window,
		cfg.ConfirmRateLimit.IPLimit,
		cfg.ConfirmRateLimit.KeyLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())

		// Signed-link callbacks arrive from SMS taps without any session,
		// so they live outside /api/v1 and carry their own rate limit.
		r.Group(func(r chi.Router) {
			r.Use(middleware.ConfirmRateLimit(confirmPolicy, redisClient, logg))
			r.Get("/confirm", controllers.ConfirmCallback(tokens, reconfirmService, logg))
			r.Get("/decline", controllers.ConfirmCallback(tokens, reconfirmService, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Patch("/appointments/{appointmentId}", controllers.EditAppointment(appointmentsService, logg))

		r.Route("/routes/{routeId}", func(r chi.Router) {
			r.Post("/claim", controllers.ClaimRoute(offersService, logg))
			r.Post("/decline", controllers.DeclineRoute(offersService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsRepo, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsRepo, logg))
		})
	})

	return r
}
