package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/pestguard-backend/internal/bookings"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	pkgAuth "github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/auth/session"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/metrics"
)

type allowSessions struct{}

func (allowSessions) HasSession(context.Context, string) (bool, error) { return true, nil }

type stubBookings struct {
	bookings.Service
	mu    sync.Mutex
	calls map[string]int
}

func (s *stubBookings) hit(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
}

func (s *stubBookings) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *stubBookings) Create(ctx context.Context, actor pkgAuth.Actor, input bookings.CreateInput) (*bookings.BookingDTO, error) {
	s.hit("create")
	return &bookings.BookingDTO{ID: uuid.New(), Status: enums.BookingStatusPending}, nil
}

func (s *stubBookings) Accept(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*bookings.BookingDTO, error) {
	s.hit("accept")
	return &bookings.BookingDTO{ID: id, Status: enums.BookingStatusAccepted}, nil
}

func (s *stubBookings) Complete(ctx context.Context, actor pkgAuth.Actor, id uuid.UUID) (*bookings.BookingDTO, error) {
	s.hit("complete")
	return &bookings.BookingDTO{ID: id, Status: enums.BookingStatusCompleted}, nil
}

type stubRoles struct{ calls int }

func (s *stubRoles) Grant(ctx context.Context, actor pkgAuth.Actor, userID uuid.UUID, role enums.Role) (*users.UserDTO, error) {
	s.calls++
	return &users.UserDTO{ID: userID, Roles: []enums.Role{role}}, nil
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	hits map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, hits: map[string]int64{}}
}

func (m *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits[key]++
	return m.hits[key], nil
}

func (m *memoryCache) RateLimitKey(scope string) string { return "rl:" + scope }

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryCache) IdempotencyKey(scope, key string) string { return "idem:" + scope + ":" + key }

func (m *memoryCache) Ping(context.Context) error { return nil }

type fixture struct {
	handler  http.Handler
	jwt      config.JWTConfig
	bookings *stubBookings
	roles    *stubRoles
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "pestguard-test", ExpirationMinutes: 30},
	}
	reg := prometheus.NewRegistry()
	metrics.NewBookingMetrics(reg).Observe("create", "OK", time.Millisecond)

	f := &fixture{jwt: cfg.JWT, bookings: &stubBookings{}, roles: &stubRoles{}}
	f.handler = NewRouter(Params{
		Config:   cfg,
		Logger:   logger.Nop(),
		Cache:    newMemoryCache(),
		Sessions: allowSessions{},
		Gatherer: reg,
		Bookings: f.bookings,
		Roles:    f.roles,
	})
	return f
}

func (f *fixture) token(t *testing.T, roles ...enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.jwt, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Roles:  roles,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *fixture) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/health/live", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/health/ready", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200 got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pestguard_booking") {
		t.Fatalf("expected booking metrics in exposition")
	}
}

func TestBookingRoutesRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/v1/bookings", "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/admin/bookings/" + uuid.NewString() + "/accept"

	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleCustomer), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleWorker), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("worker: expected 403 got %d", rec.Code)
	}
	if f.bookings.count("accept") != 0 {
		t.Fatal("service reached by non-staff")
	}
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleAdmin), ""); rec.Code != http.StatusOK {
		t.Fatalf("admin: expected 200 got %d", rec.Code)
	}
	if f.bookings.count("accept") != 1 {
		t.Fatalf("expected one accept call got %d", f.bookings.count("accept"))
	}
}

func TestCompleteRequiresWorkerRole(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/bookings/" + uuid.NewString() + "/complete"
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleCustomer), ""); rec.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleWorker), ""); rec.Code != http.StatusOK {
		t.Fatalf("worker: expected 200 got %d", rec.Code)
	}
}

func TestGrantRoleRequiresSuperuser(t *testing.T) {
	f := newFixture(t)
	path := "/api/v1/admin/users/" + uuid.NewString() + "/roles"
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleAdmin), `{"role":"worker"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("admin: expected 403 got %d", rec.Code)
	}
	if rec := f.do(http.MethodPost, path, f.token(t, enums.RoleSuperuser), `{"role":"worker"}`); rec.Code != http.StatusOK {
		t.Fatalf("superuser: expected 200 got %d", rec.Code)
	}
	if f.roles.calls != 1 {
		t.Fatalf("expected one grant got %d", f.roles.calls)
	}
}

func TestCreateBookingReplaysWithIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, enums.RoleCustomer)
	body := `{"service_id":"` + uuid.NewString() + `","starts_at":"2026-11-02T09:00:00Z","ends_at":"2026-11-02T10:00:00Z"}`

	first := f.do(http.MethodPost, "/api/v1/bookings", token, body, "Idempotency-Key", "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", first.Code, first.Body.String())
	}
	second := f.do(http.MethodPost, "/api/v1/bookings", token, body, "Idempotency-Key", "k-1")
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201 got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replay body differs")
	}
	if f.bookings.count("create") != 1 {
		t.Fatalf("expected a single create, got %d", f.bookings.count("create"))
	}
}

func TestNilServicesAnswerInternalError(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"a@example.com","password":"x"}`); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
