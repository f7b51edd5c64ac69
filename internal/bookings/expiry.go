package bookings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/pestguard-backend/internal/audit"
	"github.com/angelmondragon/pestguard-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/pestguard-backend/pkg/errors"
	"github.com/angelmondragon/pestguard-backend/pkg/outbox"
)

// ExpirePending cancels pending bookings whose start passed more than the
// configured grace ago. Each booking is expired in its own transaction by the
// system actor. It returns how many bookings were expired.
func (s *service) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-s.cfg.PendingGrace)
	ids, err := s.bookings.FindExpiredPending(ctx, cutoff, s.cfg.ExpiryBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired bookings")
	}

	expired := 0
	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		ok, err := s.expireOne(ctx, id, cutoff)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errs
}

func (s *service) expireOne(ctx context.Context, bookingID uuid.UUID, cutoff time.Time) (bool, error) {
	started := time.Now()
	expired := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bookings.WithTx(tx)
		b, err := s.lock(ctx, repo, bookingID)
		if err != nil {
			return err
		}
		// A customer may have rescheduled or staff accepted it since the scan.
		if b.Status != enums.BookingStatusPending || !b.StartsAt.Before(cutoff) {
			return nil
		}
		now := s.now()
		if err := repo.Apply(ctx, b.ID, statusPatch{Status: enums.BookingStatusCancelled, CancelledAt: &now}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire booking")
		}
		if err := s.recorder.Record(ctx, tx, b.ID, nil, audit.Expired{StartsAt: b.StartsAt}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record expiry")
		}
		expired = true
		return s.emit(ctx, tx, nil, b.PublicID, enums.EventBookingStatusChanged, outbox.BookingStatusChanged{
			BookingID:  b.PublicID,
			FromStatus: enums.BookingStatusPending.String(),
			ToStatus:   enums.BookingStatusCancelled.String(),
		})
	})
	code := ""
	if err != nil {
		code = string(pkgerrors.CodeOf(err))
		expired = false
	}
	s.metrics.Observe("expire", code, time.Since(started))
	if expired {
		s.logg.Info(s.logg.WithBookingID(ctx, bookingID.String()), "pending booking expired")
	}
	return expired, err
}
