package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/assignments"
	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
)

func requireStaff(actor auth.Actor) error {
	if actor.IsZero() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !actor.IsStaff() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin or superuser role required")
	}
	return nil
}

func conflictf(format string, args ...any) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf(format, args...))
}

func (s *service) Accept(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "accept", actor, bookingID, func(sc *scope) error {
		if sc.booking.Status != enums.BookingStatusPending {
			return conflictf("only pending bookings can be accepted; booking is %s", sc.booking.Status)
		}
		now := s.now()
		return s.setStatus(ctx, sc, actor, statusPatch{
			Status:     enums.BookingStatusAccepted,
			AcceptedAt: &now,
		}, audit.Accepted{})
	})
}

// Assign sets the current worker, overwriting any existing assignment.
func (s *service) Assign(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, input AssignInput) (*BookingDTO, error) {
	workerID, err := singleWorker(input)
	if err != nil {
		return nil, err
	}
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "assign", actor, bookingID, func(sc *scope) error {
		status := sc.booking.Status
		if status != enums.BookingStatusAccepted && status != enums.BookingStatusAssigned {
			return conflictf("only accepted or assigned bookings can be assigned; booking is %s", status)
		}
		worker, err := s.resolveWorker(ctx, sc, workerID)
		if err != nil {
			return err
		}
		return s.applyAssignment(ctx, sc, actor, worker, assignments.ModeUpsert)
	})
}

// Reassign hands the booking to another worker while keeping the previous
// assignment as history. Open bookings in any state end up assigned.
func (s *service) Reassign(ctx context.Context, actor auth.Actor, bookingID, workerID uuid.UUID) (*BookingDTO, error) {
	if workerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "worker user id required")
	}
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	return s.mutate(ctx, "reassign", actor, bookingID, func(sc *scope) error {
		if sc.booking.Status.IsTerminal() {
			return conflictf("%s bookings cannot be reassigned", sc.booking.Status)
		}
		worker, err := s.resolveWorker(ctx, sc, workerID)
		if err != nil {
			return err
		}
		return s.applyAssignment(ctx, sc, actor, worker, assignments.ModeAppend)
	})
}

func (s *service) applyAssignment(ctx context.Context, sc *scope, actor auth.Actor, worker *models.User, mode assignments.Mode) error {
	res, err := s.ledger.Assign(ctx, sc.tx, sc.booking.ID, worker.ID, &sc.actor.ID, mode)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write assignment")
	}
	statusChanged := sc.booking.Status != enums.BookingStatusAssigned
	if !res.Changed && !statusChanged {
		return nil
	}
	if statusChanged {
		if err := sc.bookings.Apply(ctx, sc.booking.ID, statusPatch{Status: enums.BookingStatusAssigned}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update booking status")
		}
		sc.booking.Status = enums.BookingStatusAssigned
	}

	var previous *uuid.UUID
	if res.Previous != nil {
		prev, err := sc.users.FindByID(ctx, *res.Previous)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load previous worker")
		}
		previous = &prev.PublicID
	}

	var event audit.Event = audit.Assigned{WorkerID: worker.PublicID}
	if mode == assignments.ModeAppend {
		event = audit.Reassigned{WorkerID: worker.PublicID, PreviousWorkerID: previous}
	}
	if err := s.record(ctx, sc, event); err != nil {
		return err
	}
	return s.emit(ctx, sc.tx, actorRef(actor), sc.booking.PublicID, enums.EventBookingAssigned, outbox.BookingAssigned{
		BookingID:        sc.booking.PublicID,
		WorkerID:         worker.PublicID,
		PreviousWorkerID: previous,
	})
}

func (s *service) resolveWorker(ctx context.Context, sc *scope, workerID uuid.UUID) (*models.User, error) {
	worker, err := sc.users.FindByPublicID(ctx, workerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "worker not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load worker")
	}
	if !worker.IsActive || !hasRole(worker, enums.RoleWorker) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "target user does not hold the worker role")
	}
	return worker, nil
}

// singleWorker reduces both payload shapes to one worker id.
func singleWorker(input AssignInput) (uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(input.WorkerIDs)+1)
	if input.WorkerID != nil {
		ids = append(ids, *input.WorkerID)
	}
	ids = append(ids, input.WorkerIDs...)

	var chosen uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "worker user id must not be empty")
		}
		if chosen != uuid.Nil && id != chosen {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "a booking has exactly one current worker")
		}
		chosen = id
	}
	if chosen == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "worker user id required")
	}
	return chosen, nil
}

func (s *service) Complete(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !actor.HasRole(enums.RoleWorker) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "worker role required")
	}
	return s.mutate(ctx, "complete", actor, bookingID, func(sc *scope) error {
		assignee, err := s.ledger.CurrentAssignee(ctx, sc.tx, sc.booking.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current assignee")
		}
		if assignee == nil || *assignee != sc.actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking is not assigned to you")
		}
		if sc.booking.Status != enums.BookingStatusAssigned {
			return conflictf("only assigned bookings can be completed; booking is %s", sc.booking.Status)
		}
		now := s.now()
		return s.setStatus(ctx, sc, actor, statusPatch{
			Status:      enums.BookingStatusCompleted,
			CompletedAt: &now,
		}, audit.Completed{})
	})
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !actor.IsStaff() && !actor.HasRole(enums.RoleCustomer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "staff or owning customer required")
	}
	return s.mutate(ctx, "cancel", actor, bookingID, func(sc *scope) error {
		if !actor.IsStaff() && !sc.booking.OwnedBy(sc.actor.ID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another customer")
		}
		switch sc.booking.Status {
		case enums.BookingStatusCompleted:
			return pkgerrors.New(pkgerrors.CodeConflict, "completed bookings cannot be cancelled")
		case enums.BookingStatusCancelled:
			return pkgerrors.New(pkgerrors.CodeConflict, "booking is already cancelled")
		}
		now := s.now()
		return s.setStatus(ctx, sc, actor, statusPatch{
			Status:      enums.BookingStatusCancelled,
			CancelledAt: &now,
		}, audit.Cancelled{})
	})
}
