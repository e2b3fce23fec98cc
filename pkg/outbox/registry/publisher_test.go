package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRegistryResolveOrderPlaced(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	payloadBytes := mustMarshal(t, payloads.OrderPlacedEvent{
		OrderID:      orderID,
		OrderNo:      "ORD20240302013005AAAA",
		RestaurantID: uuid.New(),
		DeliveryType: enums.DeliveryTypeDineIn,
		NetAmount:    decimal.RequireFromString("231.00"),
		Currency:     "INR",
		ItemCount:    2,
		TicketNo:     "KT20240302013005AAAB",
	})

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderPlaced,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, payloadBytes),
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-topic", resolved.Descriptor.Topic)
	assert.Equal(t, enums.EventOrderPlaced, resolved.Descriptor.EventType)

	payload, ok := resolved.Payload.(*payloads.OrderPlacedEvent)
	require.True(t, ok, "unexpected payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.True(t, payload.NetAmount.Equal(decimal.RequireFromString("231")))
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestEventRegistryRoutesPaymentEvents(t *testing.T) {
	reg := newTestEventRegistry(t)

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, mustMarshal(t, payloads.PaymentCapturedEvent{
			TransactionID: "GRP20240302013005AAAA",
			OrderID:       uuid.New(),
			Amount:        decimal.NewFromInt(100),
			PaymentStatus: enums.PaymentStatusPaid,
		})),
	})
	require.NoError(t, err)
	assert.Equal(t, "payments-topic", resolved.Descriptor.Topic)

	resolved, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPaymentInitiated,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Payload: mustEnvelope(t, mustMarshal(t, payloads.PaymentInitiatedEvent{
			TransactionID: "SPL20240302013005AAAA",
			OrderIDs:      []uuid.UUID{uuid.New()},
			Amount:        decimal.NewFromInt(50),
		})),
	})
	require.NoError(t, err)
	assert.Equal(t, "payments-topic", resolved.Descriptor.Topic)
}

func TestEventRegistryTopics(t *testing.T) {
	reg := newTestEventRegistry(t)
	assert.Equal(t, []string{"orders-topic", "payments-topic"}, reg.Topics())
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{PaymentEventsTopic: "payments"})
	require.Error(t, err)

	_, err = NewEventRegistry(config.PubSubConfig{OrderEventsTopic: "orders"})
	require.Error(t, err)
}

func TestEventRegistryResolveRejections(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("table_reserved"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"reason":"none"}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte(`{"order_no":"ORD1"}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.Nil,
			Payload:       mustEnvelope(t, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"version":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "expected non-retryable error, got %T", err)
		})
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrderEventsTopic:   "orders-topic",
		PaymentEventsTopic: "payments-topic",
	})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, payload []byte) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       payload,
	})
	require.NoError(t, err)
	return data
}
