package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/internal/catalog"
	"github.com/angelmondragon/pestguard-backend/internal/leads"
	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/config"
	"github.com/angelmondragon/pestguard-backend/pkg/db"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/logger"
	"github.com/angelmondragon/pestguard-backend/pkg/metrics"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
	"github.com/angelmondragon/pestguard-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service drives bookings through their lifecycle.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*BookingDTO, error)
	Accept(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error)
	Assign(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, input AssignInput) (*BookingDTO, error)
	Reassign(ctx context.Context, actor auth.Actor, bookingID, workerID uuid.UUID) (*BookingDTO, error)
	Complete(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error)
	Update(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, patch BookingPatch) (*BookingDTO, error)
	Get(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error)
	History(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) ([]EventDTO, error)
	Assignments(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) ([]AssignmentDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*pagination.Page[BookingDTO], error)
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

// ServiceParams wires the booking service.
type ServiceParams struct {
	Bookings Repository
	Users    users.Repository
	Leads    leads.Repository
	Catalog  catalog.Repository
	Ledger   *assignments.Ledger
	Recorder *audit.Recorder
	Outbox   outboxPublisher
	Tx       txRunner
	Metrics  *metrics.BookingMetrics
	Logger   *logger.Logger
	Config   config.BookingConfig
	Now      func() time.Time
}

type service struct {
	bookings Repository
	users    users.Repository
	leads    leads.Repository
	catalog  catalog.Repository
	ledger   *assignments.Ledger
	recorder *audit.Recorder
	outbox   outboxPublisher
	tx       txRunner
	metrics  *metrics.BookingMetrics
	logg     *logger.Logger
	cfg      config.BookingConfig
	now      func() time.Time
	validate *validator.Validate
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Bookings == nil:
		return nil, fmt.Errorf("bookings repository required")
	case p.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case p.Leads == nil:
		return nil, fmt.Errorf("leads repository required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case p.Ledger == nil:
		return nil, fmt.Errorf("assignment ledger required")
	case p.Recorder == nil:
		return nil, fmt.Errorf("audit recorder required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = func() time.Time { return time.Now().UTC() }
	}
	if p.Config.MaxNotesLength <= 0 {
		p.Config.MaxNotesLength = 2000
	}
	if p.Config.MinAddressLength <= 0 {
		p.Config.MinAddressLength = 5
	}
	if p.Config.ExpiryBatchSize <= 0 {
		p.Config.ExpiryBatchSize = 100
	}
	return &service{
		bookings: p.Bookings,
		users:    p.Users,
		leads:    p.Leads,
		catalog:  p.Catalog,
		ledger:   p.Ledger,
		recorder: p.Recorder,
		outbox:   p.Outbox,
		tx:       p.Tx,
		metrics:  p.Metrics,
		logg:     p.Logger,
		cfg:      p.Config,
		now:      p.Now,
		validate: validator.New(),
	}, nil
}

// scope is the transaction-bound view handed to each lifecycle step.
type scope struct {
	tx       *gorm.DB
	bookings Repository
	users    users.Repository
	actor    *models.User
	booking  *models.Booking
}

// mutate runs fn with the booking locked and the actor resolved, then reloads
// the summary inside the same transaction.
func (s *service) mutate(ctx context.Context, op string, actor auth.Actor, bookingID uuid.UUID, fn func(sc *scope) error) (*BookingDTO, error) {
	if bookingID == uuid.Nil {
		return nil, s.finish(ctx, op, time.Now(), nil, pkgerrors.New(pkgerrors.CodeValidation, "booking id required"))
	}
	started := time.Now()
	var out *BookingDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		sc := &scope{tx: tx, bookings: s.bookings.WithTx(tx), users: s.users.WithTx(tx)}
		var err error
		if sc.actor, err = users.ResolveActor(ctx, sc.users, actor); err != nil {
			return err
		}
		if sc.booking, err = s.lock(ctx, sc.bookings, bookingID); err != nil {
			return err
		}
		if err := fn(sc); err != nil {
			return err
		}
		summary, err := sc.bookings.FindSummary(ctx, sc.booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload booking")
		}
		out = toDTO(summary)
		return nil
	})
	if err := s.finish(ctx, op, started, out, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) lock(ctx context.Context, repo Repository, bookingID uuid.UUID) (*models.Booking, error) {
	booking, err := repo.LockByPublicID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock booking")
	}
	return booking, nil
}

// finish records metrics and the commit log line, and normalises untyped errors.
func (s *service) finish(ctx context.Context, op string, started time.Time, out *BookingDTO, err error) error {
	if err != nil && pkgerrors.As(err) == nil {
		err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, op+" booking")
	}
	code := ""
	if err != nil {
		code = string(pkgerrors.CodeOf(err))
	}
	s.metrics.Observe(op, code, time.Since(started))
	if err != nil || out == nil {
		return err
	}
	logCtx := s.logg.WithBookingID(ctx, out.ID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"operation": op,
		"status":    out.Status,
	})
	s.logg.Info(logCtx, "booking "+op)
	return nil
}

func (s *service) record(ctx context.Context, sc *scope, event audit.Event) error {
	if err := s.recorder.Record(ctx, sc.tx, sc.booking.ID, &sc.actor.ID, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record booking event")
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor *outbox.ActorRef, aggregateID uuid.UUID, eventType enums.OutboxEventType, data any) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBooking,
		AggregateID:   aggregateID,
		Actor:         actor,
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue booking event")
	}
	return nil
}

// setStatus applies the transition, records its event, and queues the status change.
func (s *service) setStatus(ctx context.Context, sc *scope, actor auth.Actor, patch statusPatch, event audit.Event) error {
	from := sc.booking.Status
	if err := sc.bookings.Apply(ctx, sc.booking.ID, patch); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
	}
	sc.booking.Status = patch.Status
	if err := s.record(ctx, sc, event); err != nil {
		return err
	}
	return s.emit(ctx, sc.tx, actorRef(actor), sc.booking.PublicID, enums.EventBookingStatusChanged, outbox.BookingStatusChanged{
		BookingID:  sc.booking.PublicID,
		FromStatus: from.String(),
		ToStatus:   patch.Status.String(),
	})
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Roles: actor.RoleNames()}
}

func mapWriteError(err error, action string) error {
	switch {
	case db.IsExclusionViolation(err, OverlapConstraint):
		return pkgerrors.New(pkgerrors.CodeConflict, "time slot unavailable")
	case db.IsCheckViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "booking violates a data constraint")
	case db.IsStatementTimeout(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action+" timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
}
