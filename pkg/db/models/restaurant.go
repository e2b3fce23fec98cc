package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// Restaurant is the tenant every order, table and catalog entry belongs to.
type Restaurant struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string                 `gorm:"column:name;not null"`
	Status    enums.RestaurantStatus `gorm:"column:status;not null;default:'Active'"`
	Currency  string                 `gorm:"column:currency;not null;default:'INR'"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

type RestaurantTable struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;not null"`
	Label        string    `gorm:"column:label;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// FoodItem is a menu entry; its price lives on its variants.
type FoodItem struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID         `gorm:"column:restaurant_id;type:uuid;not null"`
	Name         string            `gorm:"column:name;not null"`
	Status       enums.ItemStatus  `gorm:"column:status;not null;default:'Active'"`
	Variants     []FoodItemVariant `gorm:"foreignKey:FoodItemID"`
	Addons       []FoodItemAddon   `gorm:"foreignKey:FoodItemID"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

type FoodItemVariant struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FoodItemID  uuid.UUID       `gorm:"column:food_item_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable bool            `gorm:"column:is_available;not null"`
	SortOrder   int             `gorm:"column:sort_order;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

type FoodItemAddon struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FoodItemID  uuid.UUID       `gorm:"column:food_item_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	IsAvailable bool            `gorm:"column:is_available;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// RestaurantPaymentGateway holds the credentials a restaurant settles with.
type RestaurantPaymentGateway struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID  uuid.UUID             `gorm:"column:restaurant_id;type:uuid;not null;uniqueIndex"`
	Provider      enums.PaymentProvider `gorm:"column:provider;not null"`
	Environment   string                `gorm:"column:environment;not null;default:'sandbox'"`
	AccessToken   string                `gorm:"column:access_token"`
	LocationID    string                `gorm:"column:location_id"`
	WebhookSecret string                `gorm:"column:webhook_secret"`
	IsActive      bool                  `gorm:"column:is_active;not null"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
