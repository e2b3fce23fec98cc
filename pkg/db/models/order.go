package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// Order is the customer-facing aggregate. NetAmount is fixed at placement.
type Order struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNo        string               `gorm:"column:order_no;not null;uniqueIndex"`
	RestaurantID   uuid.UUID            `gorm:"column:restaurant_id;type:uuid;not null"`
	TableID        *uuid.UUID           `gorm:"column:table_id;type:uuid"`
	CustomerID     *uuid.UUID           `gorm:"column:customer_id;type:uuid"`
	DeliveryType   enums.DeliveryType   `gorm:"column:delivery_type;not null"`
	Channel        enums.OrderChannel   `gorm:"column:channel;not null;default:'online'"`
	Status         enums.OrderStatus    `gorm:"column:status;not null;default:'Pending'"`
	PaymentStatus  enums.PaymentStatus  `gorm:"column:payment_status;not null;default:'Unpaid'"`
	PaymentMethod  *enums.PaymentMethod `gorm:"column:payment_method"`
	TotalAmount    decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	TaxAmount      decimal.Decimal      `gorm:"column:tax_amount;type:numeric(12,2);not null"`
	DiscountAmount decimal.Decimal      `gorm:"column:discount_amount;type:numeric(12,2);not null"`
	TipsAmount     decimal.Decimal      `gorm:"column:tips_amount;type:numeric(12,2);not null"`
	NetAmount      decimal.Decimal      `gorm:"column:net_amount;type:numeric(12,2);not null"`
	Currency       string               `gorm:"column:currency;not null"`
	Note           *string              `gorm:"column:note"`
	Items          []OrderItem          `gorm:"foreignKey:OrderID"`
	KitchenTicket  *KitchenTicket       `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem captures an immutable price snapshot of one cart line.
type OrderItem struct {
	ID          uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID        `gorm:"column:order_id;type:uuid;not null"`
	FoodItemID  uuid.UUID        `gorm:"column:food_item_id;type:uuid;not null"`
	VariantID   *uuid.UUID       `gorm:"column:variant_id;type:uuid"`
	ItemName    string           `gorm:"column:item_name;not null"`
	VariantName *string          `gorm:"column:variant_name"`
	Quantity    int              `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal  `gorm:"column:unit_price;type:numeric(12,2);not null"`
	AddonsTotal decimal.Decimal  `gorm:"column:addons_total;type:numeric(12,2);not null"`
	TotalPrice  decimal.Decimal  `gorm:"column:total_price;type:numeric(12,2);not null"`
	Variant     *FoodItemVariant `gorm:"foreignKey:VariantID"`
	Addons      []OrderItemAddon `gorm:"foreignKey:OrderItemID"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
}

type OrderItemAddon struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderItemID uuid.UUID       `gorm:"column:order_item_id;type:uuid;not null"`
	AddonID     uuid.UUID       `gorm:"column:addon_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// KitchenTicket is the kitchen-facing work item created with every order.
type KitchenTicket struct {
	ID           uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID                 `gorm:"column:order_id;type:uuid;not null"`
	RestaurantID uuid.UUID                 `gorm:"column:restaurant_id;type:uuid;not null"`
	TicketNo     string                    `gorm:"column:ticket_no;not null;uniqueIndex"`
	Status       enums.KitchenTicketStatus `gorm:"column:status;not null;default:'Queued'"`
	Items        []KitchenTicketItem       `gorm:"foreignKey:TicketID"`
	CreatedAt    time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

type KitchenTicketItem struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID    uuid.UUID                 `gorm:"column:ticket_id;type:uuid;not null"`
	OrderItemID uuid.UUID                 `gorm:"column:order_item_id;type:uuid;not null"`
	ItemName    string                    `gorm:"column:item_name;not null"`
	VariantName *string                   `gorm:"column:variant_name"`
	Quantity    int                       `gorm:"column:quantity;not null"`
	Status      enums.KitchenTicketStatus `gorm:"column:status;not null;default:'Queued'"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
