package gateways

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
)

// Repository reads gateway credentials and the payments a charge covers.
type Repository interface {
	ActiveGateway(ctx context.Context, restaurantID uuid.UUID) (*models.RestaurantPaymentGateway, error)
	PaymentsByRef(ctx context.Context, providerRef string) ([]models.Payment, error)
	SetGatewayRef(ctx context.Context, providerRef, gatewayRef string) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// ActiveGateway returns nil, nil when the restaurant has no active gateway row.
func (r *repository) ActiveGateway(ctx context.Context, restaurantID uuid.UUID) (*models.RestaurantPaymentGateway, error) {
	var gw models.RestaurantPaymentGateway
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		First(&gw).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

func (r *repository) PaymentsByRef(ctx context.Context, providerRef string) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("provider_ref = ?", providerRef).
		Order("created_at ASC, id ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) SetGatewayRef(ctx context.Context, providerRef, gatewayRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider_ref = ?", providerRef).
		Update("gateway_ref", gatewayRef).Error
}
