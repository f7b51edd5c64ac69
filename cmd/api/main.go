package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/pestguard-backend/api/routes"
	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/internal/auth"
	"github.com/angelmondragon/pestguard-backend/internal/bookings"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/tags"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth/session"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/metrics"
	"github.com/angelmondragon/pestguard-backend/pkg/migrate"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
	"github.com/angelmondragon/pestguard-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	bookingMetrics := metrics.NewBookingMetrics(registry)

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	leadsRepo := leads.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	bookingService, err := bookings.NewService(bookings.ServiceParams{
		Bookings: bookings.NewRepository(gormDB),
		Users:    usersRepo,
		Leads:    leadsRepo,
		Catalog:  catalogRepo,
		Ledger:   assignments.NewLedger(gormDB),
		Recorder: audit.NewRecorder(),
		Outbox:   outboxService,
		Tx:       dbClient,
		Metrics:  bookingMetrics,
		Logger:   logg,
		Config:   cfg.Booking,
	})
	exitOnError(logg, "booking service", err)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	exitOnError(logg, "auth service", err)

	signupService, err := auth.NewSignupService(auth.SignupServiceParams{
		Tx:             dbClient,
		Users:          usersRepo,
		Leads:          leadsRepo,
		Tags:           tags.NewRepository(gormDB),
		Outbox:         outboxService,
		PasswordConfig: cfg.Password,
		Metrics:        bookingMetrics,
		Logger:         logg,
	})
	exitOnError(logg, "signup service", err)

	catalogService, err := catalog.NewService(catalogRepo)
	exitOnError(logg, "catalog service", err)

	tagService, err := tags.NewService(tags.NewRepository(gormDB), usersRepo, leadsRepo, dbClient, logg)
	exitOnError(logg, "tag service", err)

	roleService, err := users.NewRoleService(usersRepo, dbClient, logg)
	exitOnError(logg, "role service", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Cache:    redisClient,
			Sessions: sessionManager,
			Gatherer: registry,
			Auth:     authService,
			Signup:   signupService,
			Bookings: bookingService,
			Catalog:  catalogService,
			Tags:     tagService,
			Roles:    roleService,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logg.Info(ctx, "api server shutting down")
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func exitOnError(logg *logger.Logger, component string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+component, err)
	os.Exit(1)
}
