package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableserve-backend/internal/catalog"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
)

// Pricer validates carts against the catalog and prices them.
type Pricer struct {
	catalog         catalog.Reader
	defaultCurrency string
}

// NewPricer builds a Pricer. defaultCurrency applies when a restaurant has none.
func NewPricer(reader catalog.Reader, defaultCurrency string) (*Pricer, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if defaultCurrency == "" {
		defaultCurrency = "INR"
	}
	return &Pricer{catalog: reader, defaultCurrency: defaultCurrency}, nil
}

// Price applies the placement rules in order and stops at the first failure.
func (p *Pricer) Price(ctx context.Context, cart Cart) (*PricingSnapshot, error) {
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item").
			WithReason(pkgerrors.ReasonNoItems)
	}

	restaurant, err := p.catalog.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}
	if restaurant == nil || restaurant.Status != enums.RestaurantStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant is not accepting orders").
			WithReason(pkgerrors.ReasonRestaurantUnavailable).
			WithDetails(map[string]any{"restaurantId": cart.RestaurantID})
	}

	snapshot := &PricingSnapshot{
		Restaurant: restaurant,
		Total:      decimal.Zero,
		Currency:   restaurant.Currency,
	}
	if snapshot.Currency == "" {
		snapshot.Currency = p.defaultCurrency
	}

	if cart.DeliveryType == enums.DeliveryTypeDineIn && cart.TableID != nil {
		table, err := p.catalog.GetTable(ctx, restaurant.ID, *cart.TableID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "table not found").
					WithReason(pkgerrors.ReasonTableNotFound).
					WithDetails(map[string]any{"tableId": *cart.TableID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load table")
		}
		snapshot.Table = table
	}

	for _, line := range cart.Items {
		priced, err := p.priceLine(ctx, restaurant.ID, line)
		if err != nil {
			return nil, err
		}
		snapshot.Lines = append(snapshot.Lines, *priced)
		snapshot.Total = snapshot.Total.Add(priced.LineTotal)
	}

	return snapshot, nil
}

func (p *Pricer) priceLine(ctx context.Context, restaurantID uuid.UUID, line CartItem) (*PricedLine, error) {
	if line.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1").
			WithDetails(map[string]any{"foodItemId": line.FoodItemID})
	}

	item, err := p.catalog.GetItem(ctx, line.FoodItemID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load food item")
	}
	if item == nil || item.RestaurantID != restaurantID || item.Status != enums.ItemStatusActive || len(item.Variants) == 0 {
		return nil, itemUnavailable(line.FoodItemID)
	}

	variant := item.Variants[0]
	priced := &PricedLine{
		Item:        item,
		Variant:     &variant,
		UnitPrice:   variant.Price,
		Quantity:    line.Quantity,
		AddonsTotal: decimal.Zero,
	}

	if line.VariantID != nil && *line.VariantID != variant.ID {
		chosen, err := p.catalog.GetVariant(ctx, item.ID, *line.VariantID)
		switch {
		case err == nil && chosen.IsAvailable:
			priced.Variant = chosen
			priced.UnitPrice = chosen.Price
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
	}

	for _, addonID := range line.AddonIDs {
		addon, err := p.catalog.GetAddon(ctx, addonID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load addon")
		}
		// unavailable or foreign addons are dropped, not rejected
		if !addon.IsAvailable || addon.FoodItemID != item.ID {
			continue
		}
		priced.Addons = append(priced.Addons, *addon)
		priced.AddonsTotal = priced.AddonsTotal.Add(addon.Price)
	}

	priced.LineTotal = priced.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))).Add(priced.AddonsTotal)
	return priced, nil
}

func itemUnavailable(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %s is not available", id)).
		WithReason(pkgerrors.ReasonItemUnavailable).
		WithDetails(map[string]any{"foodItemId": id})
}
