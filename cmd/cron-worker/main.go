package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jdmarin/boxvalet-backend/internal/cron"
	"github.com/jdmarin/boxvalet-backend/internal/notify"
	"github.com/jdmarin/boxvalet-backend/internal/routeoffers"
	"github.com/jdmarin/boxvalet-backend/pkg/config"
	"github.com/jdmarin/boxvalet-backend/pkg/db"
	"github.com/jdmarin/boxvalet-backend/pkg/logger"
	"github.com/jdmarin/boxvalet-backend/pkg/messaging"
	"github.com/jdmarin/boxvalet-backend/pkg/metrics"
	"github.com/jdmarin/boxvalet-backend/pkg/migrate"
	"github.com/jdmarin/boxvalet-backend/pkg/outbox"
	"github.com/jdmarin/boxvalet-backend/pkg/redis"
)

const (
	maintenanceLockFormat = "cron-worker:maintenance:%s"
	sweepLockFormat       = "cron-worker:offer-sweep:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	sender, err := messaging.NewWebhookSender(cfg.Messaging)
	if err != nil {
		logg.Error(context.Background(), "failed to create messaging sender", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	notifyRepo := notify.NewRepository(gormDB)
	outboxRepo := outbox.NewRepository(gormDB)

	dispatcher, err := notify.NewDispatcher(notifyRepo, sender, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	offersService, err := routeoffers.NewService(
		routeoffers.NewRepository(gormDB),
		dbClient,
		outbox.NewService(outboxRepo, logg),
		dispatcher,
		metrics.NewOfferMetrics(prometheus.DefaultRegisterer),
		logg,
		cfg.Offers.TTL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create route offers service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	notificationCleanup, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		Repository: notifyRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	offerSweep, err := cron.NewOfferSweepJob(cron.OfferSweepJobParams{
		Logger: logg,
		Offers: offersService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create offer sweep job", err)
		os.Exit(1)
	}

	// Two cadences, two locks: daily table maintenance must not hold up the
	// minute-level offer sweep.
	maintenanceLock, err := cron.NewRedisLock(redisClient, lockKey(maintenanceLockFormat, cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance lock", err)
		os.Exit(1)
	}
	maintenance, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(notificationCleanup, outboxRetention),
		Lock:     maintenanceLock,
		Metrics:  metricsCollector,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance cron service", err)
		os.Exit(1)
	}

	sweepLock, err := cron.NewRedisLock(redisClient, lockKey(sweepLockFormat, cfg.App.Env), cfg.Offers.SweepInterval)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}
	sweep, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(offerSweep),
		Lock:     sweepLock,
		Metrics:  metricsCollector,
		Interval: cfg.Offers.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	errCh := make(chan error, 2)
	go func() { errCh <- maintenance.Run(ctx) }()
	go func() { errCh <- sweep.Run(ctx) }()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(format, env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(format, env)
}
