package bookings

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/db/dbtest"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
)

type testEnv struct {
	conn     *gorm.DB
	svc      Service
	ledger   *assignments.Ledger
	service  *models.Service
	admin    auth.Actor
	customer auth.Actor
	other    auth.Actor
	w1, w2   auth.Actor
	users    map[uuid.UUID]*models.User
	start    time.Time
}

func newTestEnv(t *testing.T, wrap func(Repository) Repository) *testEnv {
	t.Helper()
	conn := dbtest.Open(t)
	return buildEnv(t, conn, db.FromGorm(conn, logger.Nop()), wrap)
}

func buildEnv(t *testing.T, conn *gorm.DB, tx txRunner, wrap func(Repository) Repository) *testEnv {
	t.Helper()
	repo := NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}
	ledger := assignments.NewLedger(conn)
	svc, err := NewService(ServiceParams{
		Bookings: repo,
		Users:    users.NewRepository(conn),
		Leads:    leads.NewRepository(conn),
		Catalog:  catalog.NewRepository(conn),
		Ledger:   ledger,
		Recorder: audit.NewRecorder(),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logger.Nop()),
		Tx:       tx,
		Config:   config.BookingConfig{PendingGrace: time.Hour},
	})
	require.NoError(t, err)

	env := &testEnv{
		conn:    conn,
		svc:     svc,
		ledger:  ledger,
		service: dbtest.MustCreateService(t, conn, "General pest control", true),
		users:   map[uuid.UUID]*models.User{},
		start:   time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour),
	}
	mk := func(email string, roles ...enums.Role) auth.Actor {
		u := dbtest.MustCreateUser(t, conn, email, roles...)
		env.users[u.PublicID] = u
		return auth.NewActor(u.PublicID, roles...)
	}
	env.admin = mk("admin@example.com", enums.RoleAdmin)
	env.customer = mk("customer@example.com", enums.RoleCustomer)
	env.other = mk("other@example.com", enums.RoleCustomer)
	env.w1 = mk("w1@example.com", enums.RoleWorker)
	env.w2 = mk("w2@example.com", enums.RoleWorker)
	return env
}

func (e *testEnv) user(a auth.Actor) *models.User {
	return e.users[a.UserID]
}

func (e *testEnv) input() CreateInput {
	return CreateInput{
		ServiceID: e.service.PublicID,
		StartsAt:  e.start,
		EndsAt:    e.start.Add(time.Hour),
	}
}

func (e *testEnv) mustCreate(t *testing.T) *BookingDTO {
	t.Helper()
	dto, err := e.svc.Create(context.Background(), e.customer, e.input())
	require.NoError(t, err)
	return dto
}

func (e *testEnv) eventTypes(t *testing.T, bookingID uuid.UUID) []enums.BookingEventType {
	t.Helper()
	history, err := e.svc.History(context.Background(), e.admin, bookingID)
	require.NoError(t, err)
	types := make([]enums.BookingEventType, 0, len(history))
	for _, ev := range history {
		types = append(types, ev.Type)
	}
	return types
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, pkgerrors.CodeOf(err), err.Error())
}

func strPtr(s string) *string { return &s }

func TestLifecycleEndToEnd(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	created := env.mustCreate(t)
	require.Equal(t, enums.BookingStatusPending, created.Status)
	require.Equal(t, "42 Wallaby Way", created.Address)
	require.Equal(t, env.customer.UserID, *created.CustomerID)
	require.Nil(t, created.LeadID)

	accepted, err := env.svc.Accept(ctx, env.admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)

	assigned, err := env.svc.Assign(ctx, env.admin, created.ID, AssignInput{WorkerID: &env.w1.UserID})
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusAssigned, assigned.Status)
	require.Equal(t, env.w1.UserID, *assigned.WorkerID)

	completed, err := env.svc.Complete(ctx, env.w1, created.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = env.svc.Cancel(ctx, env.admin, created.ID)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.Contains(t, err.Error(), "completed bookings cannot be cancelled")

	history, err := env.svc.History(ctx, env.customer, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	wantTypes := []enums.BookingEventType{
		enums.BookingEventCreated,
		enums.BookingEventAccepted,
		enums.BookingEventAssigned,
		enums.BookingEventCompleted,
	}
	wantActors := []uuid.UUID{env.customer.UserID, env.admin.UserID, env.admin.UserID, env.w1.UserID}
	for i, ev := range history {
		require.Equal(t, wantTypes[i], ev.Type)
		require.NotNil(t, ev.ActorID)
		require.Equal(t, wantActors[i], *ev.ActorID)
	}

	require.EqualValues(t, 4, dbtest.Count(t, env.conn, "outbox_events", ""))
	require.EqualValues(t, 1, dbtest.Count(t, env.conn, "outbox_events", "event_type = ?", enums.EventBookingAssigned))
}

func TestCreateRejectsBadInputWithoutWriting(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	retired := dbtest.MustCreateService(t, env.conn, "Retired", false)

	cases := map[string]struct {
		actor  auth.Actor
		mutate func(*CreateInput)
		code   pkgerrors.Code
	}{
		"window reversed": {env.customer, func(in *CreateInput) { in.EndsAt = in.StartsAt.Add(-time.Minute) }, pkgerrors.CodeValidation},
		"empty window":    {env.customer, func(in *CreateInput) { in.EndsAt = in.StartsAt }, pkgerrors.CodeValidation},
		"notes too long":  {env.customer, func(in *CreateInput) { in.Notes = strPtr(strings.Repeat("n", 2001)) }, pkgerrors.CodeValidation},
		"missing service": {env.customer, func(in *CreateInput) { in.ServiceID = uuid.Nil }, pkgerrors.CodeValidation},
		"unknown service": {env.customer, func(in *CreateInput) { in.ServiceID = uuid.New() }, pkgerrors.CodeNotFound},
		"inactive":        {env.customer, func(in *CreateInput) { in.ServiceID = retired.PublicID }, pkgerrors.CodeNotFound},
		"short address":   {env.customer, func(in *CreateInput) { in.Address = strPtr(" abc ") }, pkgerrors.CodeValidation},
		"worker self":     {env.w1, func(*CreateInput) {}, pkgerrors.CodeForbidden},
		"customer for other": {env.customer, func(in *CreateInput) {
			in.Owner.CustomerID = &env.other.UserID
		}, pkgerrors.CodeForbidden},
		"both selectors": {env.admin, func(in *CreateInput) {
			in.Owner.CustomerID = &env.customer.UserID
			in.Owner.Lead = &LeadInput{Email: "x@example.com"}
		}, pkgerrors.CodeValidation},
		"bad lead email": {env.admin, func(in *CreateInput) {
			in.Owner.Lead = &LeadInput{Email: "not-an-email"}
		}, pkgerrors.CodeValidation},
		"unknown customer": {env.admin, func(in *CreateInput) {
			id := uuid.New()
			in.Owner.CustomerID = &id
		}, pkgerrors.CodeNotFound},
		"target not customer": {env.admin, func(in *CreateInput) {
			in.Owner.CustomerID = &env.w1.UserID
		}, pkgerrors.CodeValidation},
		"registered lead email": {env.admin, func(in *CreateInput) {
			in.Owner.Lead = &LeadInput{Email: "Customer@Example.com", Address: strPtr("1 Long Road")}
		}, pkgerrors.CodeConflict},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in := env.input()
			tc.mutate(&in)
			_, err := env.svc.Create(ctx, tc.actor, in)
			requireCode(t, err, tc.code)
		})
	}

	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "bookings", ""))
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "booking_events", ""))
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "leads", ""))
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "outbox_events", ""))
}

func TestAdminCreatesForLead(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	in := env.input()
	in.Address = strPtr("999 Override Ave")
	in.Owner.Lead = &LeadInput{Email: "Lead@Example.com", FirstName: strPtr("Lee"), Address: strPtr("123 Main St")}
	dto, err := env.svc.Create(ctx, env.admin, in)
	require.NoError(t, err)
	require.Nil(t, dto.CustomerID)
	require.NotNil(t, dto.LeadID)
	require.Equal(t, "123 Main St", dto.Address)

	var lead models.Lead
	require.NoError(t, env.conn.Where("email = ?", "lead@example.com").First(&lead).Error)
	require.Equal(t, lead.PublicID, *dto.LeadID)

	history, err := env.svc.History(ctx, env.admin, dto.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, enums.BookingEventCreatedByAdmin, history[0].Type)
	ev, err := audit.Decode(history[0].Type, history[0].Metadata)
	require.NoError(t, err)
	require.Equal(t, audit.CreatedByAdmin{OwnerKind: enums.CustomerTagKindLead, OwnerID: lead.PublicID}, ev)

	// A second booking for the same lead reuses the stored lead address.
	second := env.input()
	second.StartsAt = second.StartsAt.Add(24 * time.Hour)
	second.EndsAt = second.EndsAt.Add(24 * time.Hour)
	second.Owner.Lead = &LeadInput{Email: "lead@example.com"}
	dto2, err := env.svc.Create(ctx, env.admin, second)
	require.NoError(t, err)
	require.Equal(t, "123 Main St", dto2.Address)
	require.Equal(t, *dto.LeadID, *dto2.LeadID)
	require.EqualValues(t, 1, dbtest.Count(t, env.conn, "leads", ""))
}

func TestAdminCreatesForCustomerUsesSavedAddress(t *testing.T) {
	env := newTestEnv(t, nil)
	in := env.input()
	in.Owner.CustomerID = &env.customer.UserID
	dto, err := env.svc.Create(context.Background(), env.admin, in)
	require.NoError(t, err)
	require.Equal(t, env.customer.UserID, *dto.CustomerID)
	require.Equal(t, "42 Wallaby Way", dto.Address)
	require.Equal(t, []enums.BookingEventType{enums.BookingEventCreatedByAdmin}, env.eventTypes(t, dto.ID))
}

func TestOverlapViolationSurfacesAsConflict(t *testing.T) {
	env := newTestEnv(t, func(r Repository) Repository { return overlappingRepo{r} })
	in := env.input()
	in.Owner.Lead = &LeadInput{Email: "lead@example.com", Address: strPtr("123 Main St")}

	_, err := env.svc.Create(context.Background(), env.admin, in)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.Contains(t, err.Error(), "time slot unavailable")
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "leads", ""))
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "booking_events", ""))
}

type overlappingRepo struct {
	Repository
}

func (r overlappingRepo) WithTx(tx *gorm.DB) Repository {
	return overlappingRepo{r.Repository.WithTx(tx)}
}

func (overlappingRepo) Create(context.Context, *models.Booking) error {
	return &pgconn.PgError{Code: "23P01", ConstraintName: OverlapConstraint, Message: "conflicting key value violates exclusion constraint"}
}

func TestAssignIsIdempotentAndValidatesWorker(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &env.w1.UserID})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = env.svc.Accept(ctx, env.admin, b.ID)
	require.NoError(t, err)

	_, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerIDs: []uuid.UUID{env.w1.UserID, env.w2.UserID}})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &env.other.UserID})
	requireCode(t, err, pkgerrors.CodeValidation)
	unknown := uuid.New()
	_, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &unknown})
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = env.svc.Assign(ctx, env.customer, b.ID, AssignInput{WorkerID: &env.w1.UserID})
	requireCode(t, err, pkgerrors.CodeForbidden)
	require.EqualValues(t, 0, dbtest.Count(t, env.conn, "booking_assignments", ""))

	_, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &env.w1.UserID})
	require.NoError(t, err)
	dto, err := env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerIDs: []uuid.UUID{env.w1.UserID, env.w1.UserID}})
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusAssigned, dto.Status)

	require.EqualValues(t, 1, dbtest.Count(t, env.conn, "booking_assignments", ""))
	require.Equal(t, []enums.BookingEventType{
		enums.BookingEventCreated,
		enums.BookingEventAccepted,
		enums.BookingEventAssigned,
	}, env.eventTypes(t, b.ID))

	current, err := env.ledger.CurrentAssignee(ctx, nil, env.bookingRow(t, b.ID).ID)
	require.NoError(t, err)
	require.Equal(t, env.user(env.w1).ID, *current)

	// Assigning someone else overwrites the single ledger row.
	dto, err = env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &env.w2.UserID})
	require.NoError(t, err)
	require.Equal(t, env.w2.UserID, *dto.WorkerID)
	require.EqualValues(t, 1, dbtest.Count(t, env.conn, "booking_assignments", ""))
}

func (e *testEnv) bookingRow(t *testing.T, id uuid.UUID) *models.Booking {
	t.Helper()
	var b models.Booking
	require.NoError(t, e.conn.Where("public_id = ?", id).First(&b).Error)
	return &b
}

func TestReassignKeepsHistoryAndMovesCompletionRights(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	// Reassign is allowed from pending and forces the status to assigned.
	dto, err := env.svc.Reassign(ctx, env.admin, b.ID, env.w1.UserID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusAssigned, dto.Status)

	dto, err = env.svc.Reassign(ctx, env.admin, b.ID, env.w2.UserID)
	require.NoError(t, err)
	require.Equal(t, env.w2.UserID, *dto.WorkerID)
	require.EqualValues(t, 2, dbtest.Count(t, env.conn, "booking_assignments", ""))

	history, err := env.svc.History(ctx, env.admin, b.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	ev, err := audit.Decode(last.Type, last.Metadata)
	require.NoError(t, err)
	require.Equal(t, audit.Reassigned{WorkerID: env.w2.UserID, PreviousWorkerID: &env.w1.UserID}, ev)

	_, err = env.svc.Complete(ctx, env.w1, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Complete(ctx, env.w2, b.ID)
	require.NoError(t, err)

	_, err = env.svc.Reassign(ctx, env.admin, b.ID, env.w1.UserID)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestCompletedBookingNamesWorkerAndKeepsAssignmentLedger(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Assign(ctx, env.admin, b.ID, AssignInput{WorkerID: &env.w1.UserID})
	require.NoError(t, err)
	_, err = env.svc.Reassign(ctx, env.admin, b.ID, env.w2.UserID)
	require.NoError(t, err)

	open, err := env.svc.Get(ctx, env.customer, b.ID)
	require.NoError(t, err)
	require.Nil(t, open.CompletedBy)

	_, err = env.svc.Complete(ctx, env.w2, b.ID)
	require.NoError(t, err)

	done, err := env.svc.Get(ctx, env.customer, b.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, env.w2.UserID, *done.CompletedBy)

	ledger, err := env.svc.Assignments(ctx, env.admin, b.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	require.Equal(t, env.w1.UserID, ledger[0].WorkerID)
	require.False(t, ledger[0].Current)
	require.NotNil(t, ledger[0].UnassignedAt)
	require.Equal(t, env.w2.UserID, ledger[1].WorkerID)
	require.True(t, ledger[1].Current)
	require.Equal(t, env.admin.UserID, *ledger[1].AssignedBy)

	_, err = env.svc.Assignments(ctx, env.customer, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Assignments(ctx, env.admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestCompleteRequiresAssignedWorker(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Complete(ctx, env.customer, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Complete(ctx, env.w1, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Complete(ctx, env.w1, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	require.Equal(t, enums.BookingStatusPending, env.bookingRow(t, b.ID).Status)
}

func TestCancelRules(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Cancel(ctx, env.other, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Cancel(ctx, env.w1, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)

	dto, err := env.svc.Cancel(ctx, env.customer, b.ID)
	require.NoError(t, err)
	require.Equal(t, enums.BookingStatusCancelled, dto.Status)
	require.NotNil(t, dto.CancelledAt)

	_, err = env.svc.Cancel(ctx, env.admin, b.ID)
	requireCode(t, err, pkgerrors.CodeConflict)
	require.Contains(t, err.Error(), "booking is already cancelled")
	require.Equal(t, []enums.BookingEventType{enums.BookingEventCreated, enums.BookingEventCancelled}, env.eventTypes(t, b.ID))

	_, err = env.svc.Accept(ctx, env.admin, b.ID)
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestUpdateByOwner(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Update(ctx, env.customer, b.ID, BookingPatch{})
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = env.svc.Update(ctx, env.other, b.ID, BookingPatch{Notes: strPtr("mine now")})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Update(ctx, env.admin, b.ID, BookingPatch{Notes: strPtr("staff edit")})
	requireCode(t, err, pkgerrors.CodeForbidden)

	// Moving only the end before the stored start is caught under the lock.
	early := b.StartsAt.Add(-time.Hour)
	_, err = env.svc.Update(ctx, env.customer, b.ID, BookingPatch{EndsAt: &early})
	requireCode(t, err, pkgerrors.CodeValidation)

	newStart := b.StartsAt.Add(2 * time.Hour)
	newEnd := newStart.Add(90 * time.Minute)
	dto, err := env.svc.Update(ctx, env.customer, b.ID, BookingPatch{StartsAt: &newStart, EndsAt: &newEnd, Notes: strPtr("dog in yard")})
	require.NoError(t, err)
	require.True(t, newStart.Equal(dto.StartsAt))
	require.True(t, newEnd.Equal(dto.EndsAt))
	require.Equal(t, "dog in yard", *dto.Notes)

	_, err = env.svc.Accept(ctx, env.admin, b.ID)
	require.NoError(t, err)

	later := newStart.Add(time.Hour)
	_, err = env.svc.Update(ctx, env.customer, b.ID, BookingPatch{StartsAt: &later})
	requireCode(t, err, pkgerrors.CodeConflict)

	dto, err = env.svc.Update(ctx, env.customer, b.ID, BookingPatch{Notes: strPtr("  ")})
	require.NoError(t, err)
	require.Nil(t, dto.Notes)

	require.Equal(t, []enums.BookingEventType{
		enums.BookingEventCreated,
		enums.BookingEventRescheduled,
		enums.BookingEventAccepted,
		enums.BookingEventNotesUpdated,
	}, env.eventTypes(t, b.ID))

	_, err = env.svc.Cancel(ctx, env.customer, b.ID)
	require.NoError(t, err)
	_, err = env.svc.Update(ctx, env.customer, b.ID, BookingPatch{Notes: strPtr("too late")})
	requireCode(t, err, pkgerrors.CodeConflict)
}

func TestStaffOnlyTransitionsLeaveNoTrace(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Accept(ctx, env.customer, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Accept(ctx, env.w1, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Accept(ctx, env.admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = env.svc.Accept(ctx, auth.NewActor(uuid.New(), enums.RoleAdmin), b.ID)
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = env.svc.Accept(ctx, env.admin, b.ID)
	require.NoError(t, err)
	_, err = env.svc.Accept(ctx, env.admin, b.ID)
	requireCode(t, err, pkgerrors.CodeConflict)

	require.Equal(t, []enums.BookingEventType{enums.BookingEventCreated, enums.BookingEventAccepted}, env.eventTypes(t, b.ID))
}

func TestReadVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	b := env.mustCreate(t)

	_, err := env.svc.Get(ctx, env.customer, b.ID)
	require.NoError(t, err)
	_, err = env.svc.Get(ctx, env.admin, b.ID)
	require.NoError(t, err)
	_, err = env.svc.Get(ctx, env.other, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.History(ctx, env.w1, b.ID)
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.Get(ctx, env.admin, uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = env.svc.Reassign(ctx, env.admin, b.ID, env.w1.UserID)
	require.NoError(t, err)
	got, err := env.svc.Get(ctx, env.w1, b.ID)
	require.NoError(t, err)
	require.Equal(t, env.w1.UserID, *got.WorkerID)
}

func TestListScopesAndPages(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	insert := func(owner auth.Actor, i int) *models.Booking {
		b := &models.Booking{
			PublicID:       uuid.New(),
			CustomerUserID: &env.user(owner).ID,
			ServiceID:      env.service.ID,
			StartsAt:       env.start.Add(time.Duration(i) * time.Hour),
			EndsAt:         env.start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
			Address:        "42 Wallaby Way",
			Status:         enums.BookingStatusPending,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, env.conn.Create(b).Error)
		return b
	}
	b0 := insert(env.customer, 0)
	b1 := insert(env.customer, 1)
	b2 := insert(env.customer, 2)
	insert(env.other, 3)

	page, err := env.svc.List(ctx, env.customer, ListParams{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, b2.PublicID, page.Items[0].ID)
	require.Equal(t, b1.PublicID, page.Items[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = env.svc.List(ctx, env.customer, ListParams{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, b0.PublicID, page.Items[0].ID)
	require.Empty(t, page.NextCursor)

	all, err := env.svc.List(ctx, env.admin, ListParams{})
	require.NoError(t, err)
	require.Len(t, all.Items, 4)

	_, err = env.svc.Reassign(ctx, env.admin, b1.PublicID, env.w1.UserID)
	require.NoError(t, err)
	assigned, err := env.svc.List(ctx, env.w1, ListParams{Assigned: true})
	require.NoError(t, err)
	require.Len(t, assigned.Items, 1)
	require.Equal(t, b1.PublicID, assigned.Items[0].ID)

	status := enums.BookingStatusAssigned
	filtered, err := env.svc.List(ctx, env.customer, ListParams{Status: &status})
	require.NoError(t, err)
	require.Len(t, filtered.Items, 1)

	_, err = env.svc.List(ctx, env.w1, ListParams{})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.List(ctx, env.customer, ListParams{Assigned: true})
	requireCode(t, err, pkgerrors.CodeForbidden)
	_, err = env.svc.List(ctx, env.customer, ListParams{Cursor: "%%%"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestExpirePendingCancelsStaleBookingsAsSystem(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	insert := func(status enums.BookingStatus, startsAt time.Time) *models.Booking {
		b := &models.Booking{
			PublicID:       uuid.New(),
			CustomerUserID: &env.user(env.customer).ID,
			ServiceID:      env.service.ID,
			StartsAt:       startsAt,
			EndsAt:         startsAt.Add(time.Hour),
			Address:        "42 Wallaby Way",
			Status:         status,
		}
		require.NoError(t, env.conn.Create(b).Error)
		return b
	}
	stale := insert(enums.BookingStatusPending, now.Add(-3*time.Hour))
	withinGrace := insert(enums.BookingStatusPending, now.Add(-30*time.Minute))
	acceptedStale := insert(enums.BookingStatusAccepted, now.Add(-5*time.Hour))

	n, err := env.svc.ExpirePending(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, enums.BookingStatusCancelled, env.bookingRow(t, stale.PublicID).Status)
	require.Equal(t, enums.BookingStatusPending, env.bookingRow(t, withinGrace.PublicID).Status)
	require.Equal(t, enums.BookingStatusAccepted, env.bookingRow(t, acceptedStale.PublicID).Status)

	history, err := env.svc.History(ctx, env.admin, stale.PublicID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, enums.BookingEventExpired, history[0].Type)
	require.Nil(t, history[0].ActorID)

	n, err = env.svc.ExpirePending(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}
