package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/equiprent/equiprent-backend/pkg/logger"
)

// pendingExpirer cancels stale pending reservations. Implemented by the
// reservations service.
type pendingExpirer interface {
	ExpireStalePending(ctx context.Context, grace time.Duration) (int, error)
}

// ReservationExpiryJobParams configure the stale reservation sweeper.
type ReservationExpiryJobParams struct {
	Logger       *logger.Logger
	Reservations pendingExpirer
	Grace        time.Duration
}

// NewReservationExpiryJob builds the job that cancels pending reservations
// whose start date passed without confirmation.
func NewReservationExpiryJob(params ReservationExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reservations == nil {
		return nil, fmt.Errorf("reservations service required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = time.Hour
	}
	return &reservationExpiryJob{
		logg:         params.Logger,
		reservations: params.Reservations,
		grace:        grace,
	}, nil
}

type reservationExpiryJob struct {
	logg         *logger.Logger
	reservations pendingExpirer
	grace        time.Duration
}

func (j *reservationExpiryJob) Name() string { return "reservation-expiry" }

func (j *reservationExpiryJob) Run(ctx context.Context) error {
	expired, err := j.reservations.ExpireStalePending(ctx, j.grace)
	if err != nil {
		return fmt.Errorf("expire stale reservations: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "count", expired)
	j.logg.Info(logCtx, "stale reservation sweep complete")
	return nil
}
