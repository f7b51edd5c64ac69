package bookings

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/migrate"
)

const testDatabaseEnv = "PESTGUARD_TEST_DATABASE_URL"

// newPostgresEnv runs against a real database so the exclusion constraint and
// row locks are in play. Every table is truncated first.
func newPostgresEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := os.Getenv(testDatabaseEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}
	ctx := context.Background()

	client, err := db.New(ctx, config.DBConfig{DSN: dsn, MaxOpenConns: 10, MaxIdleConns: 5}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Up(ctx, sqlDB))
	require.NoError(t, client.Exec(ctx, `TRUNCATE outbox_events, customer_tags, booking_events,
		booking_assignments, bookings, services, leads, user_roles, users RESTART IDENTITY CASCADE`).Error)

	return buildEnv(t, client.DB(), client, nil)
}

func TestPostgresOverlappingOpenBookingsConflict(t *testing.T) {
	env := newPostgresEnv(t)
	ctx := context.Background()

	first := env.mustCreate(t)

	in := env.input()
	in.StartsAt = env.start.Add(30 * time.Minute)
	in.EndsAt = in.StartsAt.Add(time.Hour)
	in.Owner.CustomerID = &env.other.UserID
	_, err := env.svc.Create(ctx, env.admin, in)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.Contains(t, err.Error(), "time slot unavailable")

	// Back-to-back windows do not overlap under [start, end).
	in.StartsAt = env.start.Add(time.Hour)
	in.EndsAt = in.StartsAt.Add(time.Hour)
	_, err = env.svc.Create(ctx, env.admin, in)
	require.NoError(t, err)

	// Cancelling frees the slot.
	_, err = env.svc.Cancel(ctx, env.customer, first.ID)
	require.NoError(t, err)
	in.StartsAt = env.start
	in.EndsAt = env.start.Add(30 * time.Minute)
	_, err = env.svc.Create(ctx, env.admin, in)
	require.NoError(t, err)
}

func TestPostgresConcurrentAcceptHasOneWinner(t *testing.T) {
	env := newPostgresEnv(t)
	ctx := context.Background()
	b := env.mustCreate(t)

	const callers = 5
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.Accept(ctx, env.admin, b.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, pkgerrors.CodeConflict)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, []enums.BookingEventType{enums.BookingEventCreated, enums.BookingEventAccepted}, env.eventTypes(t, b.ID))
}

func TestPostgresConcurrentOverlappingCreatesHaveOneWinner(t *testing.T) {
	env := newPostgresEnv(t)
	ctx := context.Background()

	callers := []auth.Actor{env.customer, env.other, env.customer, env.other}
	errs := make([]error, len(callers))
	var wg sync.WaitGroup
	for i, actor := range callers {
		wg.Add(1)
		go func(i int, actor auth.Actor) {
			defer wg.Done()
			in := env.input()
			// Shifted windows still overlap the first caller's hour.
			in.StartsAt = env.start.Add(time.Duration(i) * 10 * time.Minute)
			in.EndsAt = in.StartsAt.Add(time.Hour)
			_, errs[i] = env.svc.Create(ctx, actor, in)
		}(i, actor)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		requireCode(t, err, pkgerrors.CodeConflict)
		require.Contains(t, err.Error(), "time slot unavailable")
	}
	require.Equal(t, 1, wins)

	var open int64
	require.NoError(t, env.conn.Table("bookings").Where("status = ?", enums.BookingStatusPending).Count(&open).Error)
	require.EqualValues(t, 1, open)
	var created int64
	require.NoError(t, env.conn.Table("booking_events").Where("event_type = ?", enums.BookingEventCreated).Count(&created).Error)
	require.EqualValues(t, 1, created)
}
