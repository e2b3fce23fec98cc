package enums

import "fmt"

type DeliveryType string

const (
	DeliveryTypeDineIn   DeliveryType = "dine_in"
	DeliveryTypePickup   DeliveryType = "pickup"
	DeliveryTypeDelivery DeliveryType = "delivery"
)

var validDeliveryTypes = []DeliveryType{
	DeliveryTypeDineIn,
	DeliveryTypePickup,
	DeliveryTypeDelivery,
}

func (d DeliveryType) String() string {
	return string(d)
}

func (d DeliveryType) IsValid() bool {
	for _, candidate := range validDeliveryTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

func ParseDeliveryType(value string) (DeliveryType, error) {
	for _, candidate := range validDeliveryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery type %q", value)
}

// OrderChannel records where an order was placed from.
type OrderChannel string

const (
	OrderChannelPOS    OrderChannel = "pos"
	OrderChannelQR     OrderChannel = "qr"
	OrderChannelOnline OrderChannel = "online"
)

var validOrderChannels = []OrderChannel{
	OrderChannelPOS,
	OrderChannelQR,
	OrderChannelOnline,
}

func (c OrderChannel) IsValid() bool {
	for _, candidate := range validOrderChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseOrderChannel(value string) (OrderChannel, error) {
	for _, candidate := range validOrderChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order channel %q", value)
}
