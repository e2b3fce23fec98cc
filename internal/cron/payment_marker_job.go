package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

const defaultGroupWindow = 24 * time.Hour

type markerRepo interface {
	DeleteMarkersBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type PaymentMarkerJobParams struct {
	Logger     *logger.Logger
	Repository markerRepo
	// GroupWindow is the settlement look-back; markers older than twice it are removed.
	GroupWindow time.Duration
}

// paymentMarkerJob deletes group-payment idempotency markers that can no
// longer collide with a new settlement.
type paymentMarkerJob struct {
	logg   *logger.Logger
	repo   markerRepo
	maxAge time.Duration
	now    func() time.Time
}

func NewPaymentMarkerJob(params PaymentMarkerJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("marker repository required")
	}
	window := params.GroupWindow
	if window <= 0 {
		window = defaultGroupWindow
	}
	return &paymentMarkerJob{
		logg:   params.Logger,
		repo:   params.Repository,
		maxAge: 2 * window,
		now:    time.Now,
	}, nil
}

func (j *paymentMarkerJob) Name() string { return "payment-marker-cleanup" }

func (j *paymentMarkerJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	deleted, err := j.repo.DeleteMarkersBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("payment marker cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "payment marker cleanup complete")
	return nil
}
