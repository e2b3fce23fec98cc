package outbox

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/logger"
)

func TestEmitStoresEnvelopeKeyedByRowID(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	occurred := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	orderID := uuid.New()

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"orderNo": "ORD-20260501-0001"},
			OccurredAt:    occurred,
		})
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, orderID, row.AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	assert.Equal(t, row.ID.String(), envelope.EventID)
	assert.Equal(t, 1, envelope.Version)
	assert.True(t, occurred.Equal(envelope.OccurredAt))
	assert.JSONEq(t, `{"orderNo":"ORD-20260501-0001"}`, string(envelope.Data))
}

func TestEmitRejectsMalformedEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), nil)
	ctx := context.Background()

	assert.ErrorContains(t, svc.Emit(ctx, nil, DomainEvent{}), "transaction required")
	assert.ErrorContains(t, svc.Emit(ctx, conn, DomainEvent{
		EventType: "order_teleported", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
	}), "unknown outbox event type")
	assert.ErrorContains(t, svc.Emit(ctx, conn, DomainEvent{
		EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder,
	}), "aggregate id required")
	assert.ErrorContains(t, svc.Emit(ctx, conn, DomainEvent{
		EventType: enums.EventOrderPlaced, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(),
		Data: func() {},
	}), "marshal")

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDLQListAndReplay(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	parked := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  10,
	}
	require.NoError(t, repo.Insert(conn, parked))

	long := strings.Repeat("x", 2*maxDLQErrorLen)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       parked.ID,
		EventType:     parked.EventType,
		AggregateType: parked.AggregateType,
		AggregateID:   parked.AggregateID,
		Payload:       parked.Payload,
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		AttemptCount:  10,
		FailedAt:      now,
	}))
	assert.Error(t, dlq.InsertTx(conn, models.OutboxDLQ{EventID: uuid.New(), ErrorReason: "gave_up"}))

	rows, err := dlq.List(ctx, DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)

	rows, err = dlq.List(ctx, DLQFilter{Reason: enums.OutboxDLQReasonUnroutable})
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		return dlq.ReplayTx(tx, parked.ID)
	}))

	var reset models.OutboxEvent
	require.NoError(t, conn.First(&reset, "id = ?", parked.ID).Error)
	assert.Zero(t, reset.AttemptCount)
	assert.Nil(t, reset.LastError)

	assert.ErrorIs(t, dlq.ReplayTx(conn, parked.ID), ErrDLQEntryNotFound)
}

func TestDecodeEnvelope(t *testing.T) {
	id := uuid.NewString()
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"` + id + `","occurredAt":"2026-05-01T12:00:00Z","data":{"orderNo":"ORD1"}}`))
	require.NoError(t, err)
	assert.Equal(t, id, env.EventID)

	for name, raw := range map[string]string{
		"not json":    `{`,
		"version 0":   `{"version":0,"eventId":"` + id + `","data":{}}`,
		"bad eventId": `{"version":1,"eventId":"evt-1","data":{}}`,
		"null data":   `{"version":1,"eventId":"` + id + `","data":null}`,
		"no data":     `{"version":1,"eventId":"` + id + `"}`,
	} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.Error(t, err, name)
	}
}
