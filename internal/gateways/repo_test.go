package gateways

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableserve-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tableserve-backend/pkg/db/models"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

func TestRepositoryGatewayAndPayments(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	restaurant := dbtest.SeedRestaurant(t, conn, enums.RestaurantStatusActive)
	inactive := dbtest.SeedRestaurant(t, conn, enums.RestaurantStatusActive)

	require.NoError(t, conn.Create(squareRow(restaurant.ID, "tok")).Error)
	off := squareRow(inactive.ID, "tok-off")
	require.NoError(t, conn.Create(off).Error)
	require.NoError(t, conn.Model(&models.RestaurantPaymentGateway{}).Where("id = ?", off.ID).Update("is_active", false).Error)

	gw, err := repo.ActiveGateway(ctx, restaurant.ID)
	require.NoError(t, err)
	require.NotNil(t, gw)
	assert.Equal(t, "tok", gw.AccessToken)

	gw, err = repo.ActiveGateway(ctx, inactive.ID)
	require.NoError(t, err)
	assert.Nil(t, gw)

	order := dbtest.SeedOrder(t, conn, dbtest.OrderSeed{RestaurantID: restaurant.ID})
	payment := models.Payment{
		ID:           uuid.New(),
		OrderID:      order.ID,
		RestaurantID: restaurant.ID,
		Amount:       decimal.RequireFromString("100"),
		Currency:     "INR",
		Provider:     enums.PaymentProviderSquare,
		ProviderRef:  "GRP1",
		Status:       enums.PaymentStatusUnpaid,
		Method:       enums.PaymentMethodCard,
	}
	require.NoError(t, conn.Create(&payment).Error)

	require.NoError(t, repo.SetGatewayRef(ctx, "GRP1", "sq_pay_1"))
	payments, err := repo.PaymentsByRef(ctx, "GRP1")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.NotNil(t, payments[0].GatewayRef)
	assert.Equal(t, "sq_pay_1", *payments[0].GatewayRef)

	none, err := repo.PaymentsByRef(ctx, "GRP2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
