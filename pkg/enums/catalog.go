package enums

// RestaurantStatus gates whether a restaurant accepts orders.
type RestaurantStatus string

const (
	RestaurantStatusActive    RestaurantStatus = "Active"
	RestaurantStatusInactive  RestaurantStatus = "Inactive"
	RestaurantStatusSuspended RestaurantStatus = "Suspended"
)

// ItemStatus gates whether a food item can be ordered.
type ItemStatus string

const (
	ItemStatusActive     ItemStatus = "Active"
	ItemStatusInactive   ItemStatus = "Inactive"
	ItemStatusOutOfStock ItemStatus = "OutOfStock"
)
