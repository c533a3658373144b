package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdmarin/boxvalet-backend/api/routes"
	"github.com/jdmarin/boxvalet-backend/internal/appointments"
	"github.com/jdmarin/boxvalet-backend/internal/bookings"
	"github.com/jdmarin/boxvalet-backend/internal/dispatchsync"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/internal/reconfirm"
	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	"github.com/jdmarin/boxvalet-backend/internal/schedule"
	"github.com/jdmarin/boxvalet-backend/pkg/confirm"
	"github.com/jdmarin/boxvalet-backend/pkg/config"
	"github.com/jdmarin/boxvalet-backend/pkg/db"
	"github.com/jdmarin/boxvalet-backend/pkg/dispatch"
	"github.com/jdmarin/boxvalet-backend/pkg/geocode"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
	"github.com/jdmarin/boxvalet-backend/pkg/metrics"
	"github.com/jdmarin/boxvalet-backend/pkg/migrate"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox"
	"github.com/jdmarin/boxvalet-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	dispatchClient, err := dispatch.NewClient(cfg.Dispatch)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch client", err)
		os.Exit(1)
	}

	sender, err := messaging.NewWebhookSender(cfg.Messaging)
	if err != nil {
		logg.Error(context.Background(), "failed to create messaging sender", err)
		os.Exit(1)
	}

	tokens, err := confirm.NewTokenManager(cfg.Confirm)
	if err != nil {
		logg.Error(context.Background(), "failed to create confirm token manager", err)
		os.Exit(1)
	}

	// Geocoding is optional: without an API key addresses store without
	// coordinates.
	var geocoder *geocode.Client
	if cfg.Geocode.APIKey != "" {
		geocoder, err = geocode.NewClient(cfg.Geocode)
		if err != nil {
			logg.Error(context.Background(), "failed to create geocode client", err)
			os.Exit(1)
		}
	}

	timing := schedule.Timing{
		UnitServiceDuration: cfg.Scheduling.UnitServiceDuration,
		TaskWindowPadding:   cfg.Scheduling.TaskWindowPadding,
	}

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	notifyRepo := notify.NewRepository(gormDB)

	dispatcher, err := notify.NewDispatcher(notifyRepo, sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	reconfirmService, err := reconfirm.NewService(
		reconfirm.NewRepository(gormDB), tokens, sender, cfg.Dispatch.DefaultContainerID)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconfirmation service", err)
		os.Exit(1)
	}

	synchronizer, err := dispatchsync.NewSynchronizer(
		dispatchClient, dispatchsync.NewRepository(gormDB), timing, cfg.Dispatch.DefaultContainerID, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create task synchronizer", err)
		os.Exit(1)
	}

	bookingManager, err := bookings.NewManager(
		bookings.NewRepository(gormDB), cfg.Scheduling.BookingWindowRadius)
	if err != nil {
		logg.Error(context.Background(), "failed to create booking manager", err)
		os.Exit(1)
	}

	appointmentsService, err := appointments.NewService(
		appointments.NewRepository(gormDB),
		dbClient,
		outboxService,
		reconfirmService,
		synchronizer,
		bookingManager,
		dispatcher,
		geocoder,
		timing,
		cfg.Dispatch.DefaultContainerID,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create appointments service", err)
		os.Exit(1)
	}

	offersService, err := routeoffers.NewService(
		routeoffers.NewRepository(gormDB),
		dbClient,
		outboxService,
		dispatcher,
		metrics.NewOfferMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Offers.TTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create route offers service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, tokens,
			appointmentsService, offersService, reconfirmService, notifyRepo),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
