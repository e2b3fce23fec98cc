package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/tableserve-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReaderLoadsItemWithVariantsInMenuOrder(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	r := NewReader(db)

	restaurant := models.Restaurant{ID: uuid.New(), Name: "Dosa Corner", Status: enums.RestaurantStatusActive, Currency: "INR"}
	require.NoError(t, db.Create(&restaurant).Error)

	item := models.FoodItem{ID: uuid.New(), RestaurantID: restaurant.ID, Name: "Masala Dosa", Status: enums.ItemStatusActive}
	require.NoError(t, db.Omit("Variants", "Addons").Create(&item).Error)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	large := models.FoodItemVariant{ID: uuid.New(), FoodItemID: item.ID, Name: "Large", Price: decimal.NewFromInt(180), IsAvailable: true, SortOrder: 2, CreatedAt: base}
	regular := models.FoodItemVariant{ID: uuid.New(), FoodItemID: item.ID, Name: "Regular", Price: decimal.NewFromInt(120), IsAvailable: true, SortOrder: 1, CreatedAt: base.Add(time.Minute)}
	require.NoError(t, db.Create(&large).Error)
	require.NoError(t, db.Create(&regular).Error)

	got, err := r.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 2)
	assert.Equal(t, "Regular", got.Variants[0].Name)
	assert.True(t, got.Variants[0].Price.Equal(decimal.NewFromInt(120)))

	variant, err := r.GetVariant(ctx, item.ID, large.ID)
	require.NoError(t, err)
	assert.Equal(t, "Large", variant.Name)

	_, err = r.GetVariant(ctx, uuid.New(), large.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReaderScopesTablesToRestaurant(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	r := NewReader(db)

	restaurantID := uuid.New()
	table := models.RestaurantTable{ID: uuid.New(), RestaurantID: restaurantID, Label: "T4"}
	require.NoError(t, db.Create(&table).Error)

	got, err := r.GetTable(ctx, restaurantID, table.ID)
	require.NoError(t, err)
	assert.Equal(t, "T4", got.Label)

	_, err = r.GetTable(ctx, uuid.New(), table.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = r.GetRestaurant(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReaderGetAddon(t *testing.T) {
	db := dbtest.Open(t)
	r := NewReader(db)

	addon := models.FoodItemAddon{ID: uuid.New(), FoodItemID: uuid.New(), Name: "Extra chutney", Price: decimal.RequireFromString("15.50"), IsAvailable: true}
	require.NoError(t, db.Create(&addon).Error)

	got, err := r.GetAddon(context.Background(), addon.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("15.5")))
}
