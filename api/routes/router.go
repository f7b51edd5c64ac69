package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pestguard-backend/api/controllers"
	bookingcontrollers "github.com/angelmondragon/pestguard-backend/api/controllers/bookings"
	"github.com/angelmondragon/pestguard-backend/api/middleware"
	"github.com/angelmondragon/pestguard-backend/internal/auth"
	"github.com/angelmondragon/pestguard-backend/internal/bookings"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/tags"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth/session"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

// Cache is the redis surface used by rate limiting and idempotent replays.
type Cache interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	IdempotencyKey(scope, key string) string
	Ping(ctx context.Context) error
}

// Params carries everything the router hands to controllers. Nil services
// produce INTERNAL_ERROR responses from their controllers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Cache    Cache
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer

	Auth     auth.Service
	Signup   auth.SignupService
	Bookings bookings.Service
	Catalog  catalog.Service
	Tags     tags.Service
	Roles    users.RoleService
}

func NewRouter(p Params) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	signupPolicy := middleware.NewAuthRateLimitPolicy(
		"signup",
		cfg.AuthRateLimit.SignupWindow,
		cfg.AuthRateLimit.SignupIPLimit,
		cfg.AuthRateLimit.SignupEmailLimit,
	)

	// Keep untyped nils nil so the middlewares skip redis entirely.
	var (
		limiter interface {
			IncrWithTTL(context.Context, string, time.Duration) (int64, error)
			RateLimitKey(string) string
		}
		replays interface {
			Get(context.Context, string) (string, error)
			SetNX(context.Context, string, any, time.Duration) (bool, error)
			IdempotencyKey(string, string) string
		}
		readiness = map[string]controllers.Pinger{}
	)
	if p.Cache != nil {
		limiter, replays = p.Cache, p.Cache
		readiness["redis"] = p.Cache
	}
	if p.DB != nil {
		readiness["db"] = p.DB
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if p.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/services", controllers.ServicesList(p.Catalog, logg))

		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
			r.With(middleware.AuthRateLimit(signupPolicy, limiter, logg)).Post("/signup", controllers.AuthSignup(p.Signup, p.Auth, logg))
			r.With(middleware.Auth(cfg.JWT, p.Sessions, logg)).Post("/logout", controllers.AuthLogout(p.Auth, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))
			r.Use(middleware.Idempotency(replays, logg))

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", bookingcontrollers.Create(p.Bookings, logg))
				r.Get("/", bookingcontrollers.List(p.Bookings, logg))
				r.Route("/{bookingId}", func(r chi.Router) {
					r.Get("/", bookingcontrollers.Get(p.Bookings, logg))
					r.Patch("/", bookingcontrollers.Update(p.Bookings, logg))
					r.Get("/events", bookingcontrollers.Events(p.Bookings, logg))
					r.Post("/cancel", bookingcontrollers.Cancel(p.Bookings, logg))
					r.With(middleware.RequireAnyRole(logg, enums.RoleWorker)).
						Post("/complete", bookingcontrollers.Complete(p.Bookings, logg))
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAnyRole(logg, enums.RoleAdmin, enums.RoleSuperuser))

				r.Route("/bookings/{bookingId}", func(r chi.Router) {
					r.Post("/accept", bookingcontrollers.AdminAccept(p.Bookings, logg))
					r.Post("/assign", bookingcontrollers.AdminAssign(p.Bookings, logg))
					r.Post("/reassign", bookingcontrollers.AdminReassign(p.Bookings, logg))
					r.Get("/assignments", bookingcontrollers.AdminAssignments(p.Bookings, logg))
				})
				r.Put("/customers/{kind}/{entityId}/tag", controllers.AdminSetCustomerTag(p.Tags, logg))
				r.With(middleware.RequireAnyRole(logg, enums.RoleSuperuser)).
					Post("/users/{userId}/roles", controllers.AdminGrantRole(p.Roles, logg))
			})
		})
	})

	return r
}
