// Package notify holds the realtime event names, room naming and the notifier
// contract shared by the order, status and settlement services.
package notify

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

const (
	EventNewOrder             = "newOrder"
	EventOrderStatusUpdated   = "orderStatusUpdated"
	EventOrderCancelled       = "orderCancelled"
	EventPaymentStatusUpdated = "paymentStatusUpdated"
)

const (
	restaurantRoomPrefix = "restaurant_"
	customerRoomPrefix   = "customer_"
)

// Notifier delivers an event to every connected member of the given rooms.
// Delivery is best effort; implementations never report failures.
type Notifier interface {
	SendNotification(event string, payload any, rooms ...string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) SendNotification(string, any, ...string) {}

func RestaurantRoom(id uuid.UUID) string {
	return restaurantRoomPrefix + id.String()
}

func CustomerRoom(id uuid.UUID) string {
	return customerRoomPrefix + id.String()
}

// OrderRooms returns the restaurant room plus the customer room when the order has one.
func OrderRooms(restaurantID uuid.UUID, customerID *uuid.UUID) []string {
	rooms := []string{RestaurantRoom(restaurantID)}
	if customerID != nil && *customerID != uuid.Nil {
		rooms = append(rooms, CustomerRoom(*customerID))
	}
	return rooms
}

// StatusChange is the payload of orderStatusUpdated and orderCancelled.
type StatusChange struct {
	OrderID uuid.UUID         `json:"orderId"`
	OrderNo string            `json:"orderNo"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Note    string            `json:"note,omitempty"`
}

// PaymentStatusChange is the payload of paymentStatusUpdated.
type PaymentStatusChange struct {
	TransactionID string              `json:"txnId"`
	OrderID       uuid.UUID           `json:"orderId"`
	OrderNo       string              `json:"orderNo"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
}
