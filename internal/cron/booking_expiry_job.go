package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/pestguard-backend/pkg/logger"
)

type bookingExpirer interface {
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type BookingExpiryJobParams struct {
	Logger   *logger.Logger
	Bookings bookingExpirer
}

// NewBookingExpiryJob cancels pending bookings whose start time has passed.
// The grace period lives in the booking service config.
func NewBookingExpiryJob(params BookingExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bookings == nil {
		return nil, fmt.Errorf("booking service required")
	}
	return &bookingExpiryJob{
		logg:     params.Logger,
		bookings: params.Bookings,
		now:      time.Now,
	}, nil
}

type bookingExpiryJob struct {
	logg     *logger.Logger
	bookings bookingExpirer
	now      func() time.Time
}

func (j *bookingExpiryJob) Name() string { return "booking-expiry" }

// Run returns the partial count alongside any error so metrics reflect the
// bookings that did expire.
func (j *bookingExpiryJob) Run(ctx context.Context) (int, error) {
	expired, err := j.bookings.ExpirePending(ctx, j.now().UTC())
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "expired stale pending bookings")
	}
	if err != nil {
		return expired, fmt.Errorf("booking expiry: %w", err)
	}
	return expired, nil
}
