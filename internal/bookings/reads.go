package bookings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/users"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/db/models"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/pagination"
)

// Get returns the booking to its owner, staff, or the currently assigned worker.
func (s *service) Get(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) (*BookingDTO, error) {
	var out *BookingDTO
	err := s.read(ctx, actor, bookingID, func(tx *gorm.DB, summary *Summary) error {
		out = toDTO(summary)
		if summary.Status != enums.BookingStatusCompleted {
			return nil
		}
		entry, err := s.recorder.Latest(ctx, tx, summary.ID, enums.BookingEventCompleted)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load completion event")
		}
		out.CompletedBy = entry.ActorPublicID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Assignments returns the booking's assignment ledger, oldest first. Staff only.
func (s *service) Assignments(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) ([]AssignmentDTO, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	var out []AssignmentDTO
	err := s.read(ctx, actor, bookingID, func(tx *gorm.DB, summary *Summary) error {
		entries, err := s.ledger.History(ctx, tx, summary.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
		}
		out = assignmentDTOs(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// History reconstructs the booking's audit trail, oldest first.
func (s *service) History(ctx context.Context, actor auth.Actor, bookingID uuid.UUID) ([]EventDTO, error) {
	var out []EventDTO
	err := s.read(ctx, actor, bookingID, func(tx *gorm.DB, summary *Summary) error {
		entries, err := s.recorder.List(ctx, tx, summary.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list booking events")
		}
		out = eventDTOs(entries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) read(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, fn func(tx *gorm.DB, summary *Summary) error) error {
	if bookingID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "booking id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		actorUser, err := users.ResolveActor(ctx, s.users.WithTx(tx), actor)
		if err != nil {
			return err
		}
		summary, err := s.bookings.WithTx(tx).FindSummaryByPublicID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load booking")
		}
		if err := s.authorizeRead(ctx, tx, actor, actorUser, &summary.Booking); err != nil {
			return err
		}
		return fn(tx, summary)
	})
}

func (s *service) authorizeRead(ctx context.Context, tx *gorm.DB, actor auth.Actor, actorUser *models.User, b *models.Booking) error {
	if actor.IsStaff() || b.OwnedBy(actorUser.ID) {
		return nil
	}
	if actor.HasRole(enums.RoleWorker) {
		assignee, err := s.ledger.CurrentAssignee(ctx, tx, b.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current assignee")
		}
		if assignee != nil && *assignee == actorUser.ID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "booking is not visible to you")
}

// List pages the caller's bookings: everything for staff, owned bookings for
// customers, or current assignments when params.Assigned is set.
func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*pagination.Page[BookingDTO], error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	switch {
	case params.Assigned && !actor.HasRole(enums.RoleWorker):
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "worker role required")
	case !params.Assigned && !actor.IsStaff() && !actor.HasRole(enums.RoleCustomer):
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer or staff role required")
	}

	page := &pagination.Page[BookingDTO]{Items: []BookingDTO{}}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		actorUser, err := users.ResolveActor(ctx, s.users.WithTx(tx), actor)
		if err != nil {
			return err
		}
		q := listQuery{Status: params.Status, Cursor: cursor, Limit: params.Limit}
		switch {
		case params.Assigned:
			q.WorkerUserID = &actorUser.ID
		case !actor.IsStaff():
			q.CustomerUserID = &actorUser.ID
		}
		rows, err := s.bookings.WithTx(tx).List(ctx, q)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bookings")
		}
		rows, next := pagination.Split(rows, params.Limit)
		for i := range rows {
			page.Items = append(page.Items, *toDTO(&rows[i]))
		}
		if next != nil && len(rows) > 0 {
			last := rows[len(rows)-1]
			page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.PublicID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
