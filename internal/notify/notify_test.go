package notify

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOrderRooms(t *testing.T) {
	restaurantID := uuid.MustParse("7f1d3c6e-2f7e-4a53-9a58-0a4a3d1f7a10")
	customerID := uuid.MustParse("0b5f1c9c-5b8e-4f0f-8f1e-2f5a7d0d6c21")

	assert.Equal(t, []string{"restaurant_7f1d3c6e-2f7e-4a53-9a58-0a4a3d1f7a10"}, OrderRooms(restaurantID, nil))

	nilCustomer := uuid.Nil
	assert.Len(t, OrderRooms(restaurantID, &nilCustomer), 1)

	assert.Equal(t, []string{
		"restaurant_7f1d3c6e-2f7e-4a53-9a58-0a4a3d1f7a10",
		"customer_0b5f1c9c-5b8e-4f0f-8f1e-2f5a7d0d6c21",
	}, OrderRooms(restaurantID, &customerID))
}

func TestNopNotifier(t *testing.T) {
	var n Notifier = Nop{}
	assert.NotPanics(t, func() { n.SendNotification(EventNewOrder, nil, "restaurant_x") })
}
