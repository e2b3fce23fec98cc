package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

// SeedRestaurant inserts an INR restaurant with the given status.
func SeedRestaurant(t *testing.T, conn *gorm.DB, status enums.RestaurantStatus) models.Restaurant {
	t.Helper()
	restaurant := models.Restaurant{ID: uuid.New(), Name: "Spice Route", Status: status, Currency: "INR"}
	require.NoError(t, conn.Create(&restaurant).Error)
	return restaurant
}

func SeedTable(t *testing.T, conn *gorm.DB, restaurantID uuid.UUID) models.RestaurantTable {
	t.Helper()
	table := models.RestaurantTable{ID: uuid.New(), RestaurantID: restaurantID, Label: "T1"}
	require.NoError(t, conn.Create(&table).Error)
	return table
}

// SeedItem inserts an item with one available variant per price, in order.
func SeedItem(t *testing.T, conn *gorm.DB, restaurantID uuid.UUID, status enums.ItemStatus, prices ...string) models.FoodItem {
	t.Helper()
	item := models.FoodItem{ID: uuid.New(), RestaurantID: restaurantID, Name: "Paneer Tikka", Status: status}
	require.NoError(t, conn.Omit("Variants", "Addons").Create(&item).Error)
	for i, price := range prices {
		variant := models.FoodItemVariant{
			ID:          uuid.New(),
			FoodItemID:  item.ID,
			Name:        "Regular",
			Price:       decimal.RequireFromString(price),
			IsAvailable: true,
			SortOrder:   i,
		}
		require.NoError(t, conn.Create(&variant).Error)
		item.Variants = append(item.Variants, variant)
	}
	return item
}

func SeedAddon(t *testing.T, conn *gorm.DB, itemID uuid.UUID, price string, available bool) models.FoodItemAddon {
	t.Helper()
	addon := models.FoodItemAddon{ID: uuid.New(), FoodItemID: itemID, Name: "Extra Cheese", Price: decimal.RequireFromString(price), IsAvailable: available}
	require.NoError(t, conn.Create(&addon).Error)
	return addon
}

// OrderSeed describes an order inserted directly, bypassing placement.
type OrderSeed struct {
	RestaurantID  uuid.UUID
	CustomerID    *uuid.UUID
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	NetAmount     string
	CreatedAt     time.Time
}

func SeedOrder(t *testing.T, conn *gorm.DB, seed OrderSeed) models.Order {
	t.Helper()
	if seed.Status == "" {
		seed.Status = enums.OrderStatusPending
	}
	if seed.PaymentStatus == "" {
		seed.PaymentStatus = enums.PaymentStatusUnpaid
	}
	if seed.NetAmount == "" {
		seed.NetAmount = "100"
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = time.Now().UTC()
	}
	amount := decimal.RequireFromString(seed.NetAmount)
	order := models.Order{
		ID:             uuid.New(),
		OrderNo:        "ORD" + uuid.NewString()[:12],
		RestaurantID:   seed.RestaurantID,
		CustomerID:     seed.CustomerID,
		DeliveryType:   enums.DeliveryTypeDineIn,
		Channel:        enums.OrderChannelQR,
		Status:         seed.Status,
		PaymentStatus:  seed.PaymentStatus,
		TotalAmount:    amount,
		TaxAmount:      decimal.Zero,
		DiscountAmount: decimal.Zero,
		TipsAmount:     decimal.Zero,
		NetAmount:      amount,
		Currency:       "INR",
		CreatedAt:      seed.CreatedAt.UTC(),
	}
	require.NoError(t, conn.Omit("Items", "KitchenTicket").Create(&order).Error)
	return order
}
