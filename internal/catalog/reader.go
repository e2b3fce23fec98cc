package catalog

import (
	"context"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reader is the read-only view of restaurants, tables and menu items used when
// pricing a cart. Lookups that find nothing return gorm.ErrRecordNotFound.
type Reader interface {
	WithTx(tx *gorm.DB) Reader
	GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error)
	GetTable(ctx context.Context, restaurantID, tableID uuid.UUID) (*models.RestaurantTable, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error)
	GetVariant(ctx context.Context, itemID, variantID uuid.UUID) (*models.FoodItemVariant, error)
	GetAddon(ctx context.Context, id uuid.UUID) (*models.FoodItemAddon, error)
}

type reader struct {
	db *gorm.DB
}

// NewReader builds a catalog reader bound to the provided DB.
func NewReader(db *gorm.DB) Reader {
	return &reader{db: db}
}

func (r *reader) WithTx(tx *gorm.DB) Reader {
	if tx == nil {
		return r
	}
	return &reader{db: tx}
}

func (r *reader) GetRestaurant(ctx context.Context, id uuid.UUID) (*models.Restaurant, error) {
	var restaurant models.Restaurant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&restaurant).Error; err != nil {
		return nil, err
	}
	return &restaurant, nil
}

func (r *reader) GetTable(ctx context.Context, restaurantID, tableID uuid.UUID) (*models.RestaurantTable, error) {
	var table models.RestaurantTable
	err := r.db.WithContext(ctx).
		Where("id = ? AND restaurant_id = ?", tableID, restaurantID).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// GetItem loads the item with its variants in menu order (sort_order, then
// created_at) so that Variants[0] is the default variant.
func (r *reader) GetItem(ctx context.Context, id uuid.UUID) (*models.FoodItem, error) {
	var item models.FoodItem
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC").Order("created_at ASC")
		}).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *reader) GetVariant(ctx context.Context, itemID, variantID uuid.UUID) (*models.FoodItemVariant, error) {
	var variant models.FoodItemVariant
	err := r.db.WithContext(ctx).
		Where("id = ? AND food_item_id = ?", variantID, itemID).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *reader) GetAddon(ctx context.Context, id uuid.UUID) (*models.FoodItemAddon, error) {
	var addon models.FoodItemAddon
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&addon).Error; err != nil {
		return nil, err
	}
	return &addon, nil
}
