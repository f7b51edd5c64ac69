package bookings

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/pkg/auth"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
)

// Update applies a customer edit. Pending bookings may move and change notes;
// accepted bookings accept notes only.
func (s *service) Update(ctx context.Context, actor auth.Actor, bookingID uuid.UUID, patch BookingPatch) (*BookingDTO, error) {
	if actor.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if patch.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	if err := s.checkNotes(patch.Notes); err != nil {
		return nil, err
	}
	if patch.StartsAt != nil && patch.EndsAt != nil && !patch.EndsAt.After(*patch.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
	}
	if !actor.HasRole(enums.RoleCustomer) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the owning customer may edit a booking")
	}

	return s.mutate(ctx, "update", actor, bookingID, func(sc *scope) error {
		b := sc.booking
		if !b.OwnedBy(sc.actor.ID) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "booking belongs to another customer")
		}
		switch b.Status {
		case enums.BookingStatusPending:
		case enums.BookingStatusAccepted:
			if patch.TouchesSchedule() {
				return pkgerrors.New(pkgerrors.CodeConflict, "accepted bookings only allow notes changes")
			}
		default:
			return conflictf("%s bookings cannot be edited", b.Status)
		}

		from := audit.Rescheduled{FromStartsAt: b.StartsAt, FromEndsAt: b.EndsAt}
		startsAt, endsAt := b.StartsAt, b.EndsAt
		if patch.StartsAt != nil {
			startsAt = patch.StartsAt.UTC()
		}
		if patch.EndsAt != nil {
			endsAt = patch.EndsAt.UTC()
		}
		if !endsAt.After(startsAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "ends_at must be after starts_at")
		}

		if err := sc.bookings.Apply(ctx, b.ID, patch); err != nil {
			return mapWriteError(err, "update booking")
		}

		var event audit.Event = audit.NotesUpdated{}
		if patch.TouchesSchedule() {
			from.ToStartsAt, from.ToEndsAt = startsAt, endsAt
			from.NotesChanged = patch.Notes != nil
			event = from
		}
		if err := s.record(ctx, sc, event); err != nil {
			return err
		}
		return s.emit(ctx, sc.tx, actorRef(actor), b.PublicID, enums.EventBookingUpdated, outbox.BookingUpdated{
			BookingID:    b.PublicID,
			StartsAt:     startsAt,
			EndsAt:       endsAt,
			NotesChanged: patch.Notes != nil,
		})
	})
}
