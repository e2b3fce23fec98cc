package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
)

// GroupInput settles every eligible order of a customer at one restaurant.
// IdempotencyKey, when set, scopes the duplicate guard to the caller's key.
type GroupInput struct {
	CustomerID     uuid.UUID
	RestaurantID   uuid.UUID
	IdempotencyKey string
	Provider       enums.PaymentProvider
	Method         enums.PaymentMethod
	Actor          *outbox.ActorRef
}

type GroupPayment struct {
	TransactionID string                `json:"txnId"`
	TotalAmount   decimal.Decimal       `json:"totalAmount"`
	OrderIDs      []uuid.UUID           `json:"orderIds"`
	Currency      string                `json:"currency"`
	Provider      enums.PaymentProvider `json:"provider"`
}

type SplitLine struct {
	Label  string
	Amount decimal.Decimal
}

// OrderScope limits an operation to orders of one restaurant or one
// customer. Orders outside the scope read as not found.
type OrderScope struct {
	RestaurantID *uuid.UUID
	CustomerID   *uuid.UUID
}

func (s OrderScope) allows(order *models.Order) bool {
	if s.RestaurantID != nil && order.RestaurantID != *s.RestaurantID {
		return false
	}
	if s.CustomerID != nil && (order.CustomerID == nil || *order.CustomerID != *s.CustomerID) {
		return false
	}
	return true
}

type SplitInput struct {
	OrderID      uuid.UUID
	Splits       []SplitLine
	AllowPartial bool
	Scope        OrderScope
	Actor        *outbox.ActorRef
}

type SplitBillView struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"orderId"`
	Label     string          `json:"label"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      bool            `json:"paid"`
	IsPartial bool            `json:"isPartial"`
	PaymentID *uuid.UUID      `json:"paymentId,omitempty"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

func newSplitBillView(s models.SplitBill) SplitBillView {
	return SplitBillView{
		ID:        s.ID,
		OrderID:   s.OrderID,
		Label:     s.Label,
		Amount:    s.Amount,
		Paid:      s.Paid,
		IsPartial: s.IsPartial,
		PaymentID: s.PaymentID,
		PaidAt:    s.PaidAt,
	}
}

type SplitBills struct {
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Total         decimal.Decimal     `json:"total"`
	Splits        []SplitBillView     `json:"splits"`
}

type PaySplitInput struct {
	SplitBillID uuid.UUID
	Provider    enums.PaymentProvider
	Method      enums.PaymentMethod
	Scope       OrderScope
	Actor       *outbox.ActorRef
}

type SplitPayment struct {
	TransactionID string                `json:"txnId"`
	PaymentID     uuid.UUID             `json:"paymentId"`
	SplitBillID   uuid.UUID             `json:"splitBillId"`
	OrderID       uuid.UUID             `json:"orderId"`
	Amount        decimal.Decimal       `json:"amount"`
	Currency      string                `json:"currency"`
	Provider      enums.PaymentProvider `json:"provider"`
}

// CallbackStatus is the outcome reported by a payment gateway.
type CallbackStatus string

const (
	CallbackSuccess CallbackStatus = "SUCCESS"
	CallbackFailed  CallbackStatus = "FAILED"
)

func (s CallbackStatus) IsValid() bool {
	return s == CallbackSuccess || s == CallbackFailed
}

// CallbackInput is a gateway report for one correlation id. SplitBillID pins
// the split a success settles; without it the payment's own split link, then
// an amount match against the order's unpaid splits, is used.
type CallbackInput struct {
	TransactionID string
	Status        CallbackStatus
	SplitBillID   *uuid.UUID
	GatewayRef    string
	FailureReason string
}

type OrderSettlement struct {
	OrderID       uuid.UUID           `json:"orderId"`
	OrderNo       string              `json:"orderNo"`
	RestaurantID  uuid.UUID           `json:"restaurantId"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
}

type CallbackResult struct {
	TransactionID    string            `json:"txnId"`
	Status           CallbackStatus    `json:"status"`
	AlreadyProcessed bool              `json:"alreadyProcessed"`
	Payments         int               `json:"payments"`
	Orders           []OrderSettlement `json:"orders"`
}
