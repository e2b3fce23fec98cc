package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableserve-backend/internal/settlement"
	"github.com/angelmondragon/tableserve-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
)

func TestPaymentMarkerCleanupUsesTwiceTheWindow(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := func(key string, age time.Duration) {
		require.NoError(t, conn.Create(&models.PaymentMarker{
			ID:          uuid.New(),
			MarkerKey:   key,
			Owner:       "customer:" + key,
			ProviderRef: "GRP" + key,
			CreatedAt:   now.Add(-age),
		}).Error)
	}
	seed("stale", 49*time.Hour)
	seed("inside-double-window", 30*time.Hour)
	seed("fresh", time.Hour)

	jobIface, err := NewPaymentMarkerJob(PaymentMarkerJobParams{
		Logger:      testLogger(),
		Repository:  settlement.NewRepository(conn),
		GroupWindow: 24 * time.Hour,
	})
	require.NoError(t, err)
	job := jobIface.(*paymentMarkerJob)
	job.now = func() time.Time { return now }
	assert.Equal(t, "payment-marker-cleanup", job.Name())

	require.NoError(t, job.Run(context.Background()))

	var keys []string
	require.NoError(t, conn.Model(&models.PaymentMarker{}).Order("marker_key").Pluck("marker_key", &keys).Error)
	assert.Equal(t, []string{"fresh", "inside-double-window"}, keys)
}

type failingMarkerRepo struct{}

func (failingMarkerRepo) DeleteMarkersBefore(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestPaymentMarkerCleanupPropagatesError(t *testing.T) {
	job, err := NewPaymentMarkerJob(PaymentMarkerJobParams{Logger: testLogger(), Repository: failingMarkerRepo{}})
	require.NoError(t, err)
	assert.ErrorContains(t, job.Run(context.Background()), "payment marker cleanup")
}
