package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// Payment is one settlement row. Rows of a group share ProviderRef.
type Payment struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID             `gorm:"column:order_id;type:uuid;not null"`
	RestaurantID  uuid.UUID             `gorm:"column:restaurant_id;type:uuid;not null"`
	CustomerID    *uuid.UUID            `gorm:"column:customer_id;type:uuid"`
	SplitBillID   *uuid.UUID            `gorm:"column:split_bill_id;type:uuid"`
	Amount        decimal.Decimal       `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      string                `gorm:"column:currency;not null"`
	Provider      enums.PaymentProvider `gorm:"column:provider;not null"`
	ProviderRef   string                `gorm:"column:provider_ref;not null;index"`
	Status        enums.PaymentStatus   `gorm:"column:status;not null;default:'Unpaid'"`
	Method        enums.PaymentMethod   `gorm:"column:method;not null"`
	GatewayRef    *string               `gorm:"column:gateway_ref"`
	FailureReason *string               `gorm:"column:failure_reason"`
	CapturedAt    *time.Time            `gorm:"column:captured_at"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// SplitBill is one party's share of an order.
type SplitBill struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	Label     string          `gorm:"column:label;not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Paid      bool            `gorm:"column:paid;not null;default:false"`
	PaymentID *uuid.UUID      `gorm:"column:payment_id;type:uuid"`
	IsPartial bool            `gorm:"column:is_partial;not null;default:false"`
	PaidAt    *time.Time      `gorm:"column:paid_at"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// PaymentMarker guards a settlement initiation against duplicates.
type PaymentMarker struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MarkerKey   string    `gorm:"column:marker_key;not null;uniqueIndex"`
	Owner       string    `gorm:"column:owner;not null"`
	ProviderRef string    `gorm:"column:provider_ref;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentMarker) TableName() string {
	return "payment_idempotency_markers"
}
