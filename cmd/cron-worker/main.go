package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/internal/bookings"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/cron"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/metrics"
	"github.com/angelmondragon/pestguard-backend/pkg/migrate"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
	"github.com/angelmondragon/pestguard-backend/pkg/redis"
)

const lockName = "cron-worker"

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

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(lockName+":"+cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Bookings: bookings.NewRepository(gormDB),
		Users:    users.NewRepository(gormDB),
		Leads:    leads.NewRepository(gormDB),
		Catalog:  catalog.NewRepository(gormDB),
		Ledger:   assignments.NewLedger(gormDB),
		Recorder: audit.NewRecorder(),
		Outbox:   outbox.NewService(outboxRepo, logg),
		Tx:       dbClient,
		Logger:   logg,
		Config:   cfg.Booking,
	})
	if err != nil {
		return nil, err
	}

	expiry, err := cron.NewBookingExpiryJob(cron.BookingExpiryJobParams{
		Logger:   logg,
		Bookings: bookingService,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(expiry, retention), nil
}
