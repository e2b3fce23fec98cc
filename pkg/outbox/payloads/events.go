package payloads

import (
	"time"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPlacedEvent is emitted when the writer commits a new order.
type OrderPlacedEvent struct {
	OrderID      uuid.UUID          `json:"order_id"`
	OrderNo      string             `json:"order_no"`
	RestaurantID uuid.UUID          `json:"restaurant_id"`
	CustomerID   *uuid.UUID         `json:"customer_id,omitempty"`
	TableID      *uuid.UUID         `json:"table_id,omitempty"`
	DeliveryType enums.DeliveryType `json:"delivery_type"`
	NetAmount    decimal.Decimal    `json:"net_amount"`
	Currency     string             `json:"currency"`
	ItemCount    int                `json:"item_count"`
	TicketNo     string             `json:"ticket_no"`
}

// OrderStatusChangedEvent is emitted for every applied status transition.
type OrderStatusChangedEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	OrderNo      string            `json:"order_no"`
	RestaurantID uuid.UUID         `json:"restaurant_id"`
	CustomerID   *uuid.UUID        `json:"customer_id,omitempty"`
	From         enums.OrderStatus `json:"from"`
	To           enums.OrderStatus `json:"to"`
	Note         string            `json:"note,omitempty"`
	ChangedAt    time.Time         `json:"changed_at"`
}

// PaymentInitiatedEvent is emitted when a correlation id is issued for one or more orders.
type PaymentInitiatedEvent struct {
	TransactionID string                `json:"transaction_id"`
	RestaurantID  uuid.UUID             `json:"restaurant_id"`
	CustomerID    *uuid.UUID            `json:"customer_id,omitempty"`
	OrderIDs      []uuid.UUID           `json:"order_ids"`
	SplitBillID   *uuid.UUID            `json:"split_bill_id,omitempty"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Provider      enums.PaymentProvider `json:"provider"`
}

// PaymentCapturedEvent is emitted per order when a success callback is applied.
type PaymentCapturedEvent struct {
	TransactionID string              `json:"transaction_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	RestaurantID  uuid.UUID           `json:"restaurant_id"`
	Amount        decimal.Decimal     `json:"amount"`
	SplitBillIDs  []uuid.UUID         `json:"split_bill_ids,omitempty"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	CapturedAt    time.Time           `json:"captured_at"`
}

// PaymentFailedEvent is emitted per order when a failure callback is applied.
type PaymentFailedEvent struct {
	TransactionID string    `json:"transaction_id"`
	OrderID       uuid.UUID `json:"order_id"`
	RestaurantID  uuid.UUID `json:"restaurant_id"`
	Reason        string    `json:"reason,omitempty"`
}
