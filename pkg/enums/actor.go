package enums

import "fmt"

// SubjectType distinguishes staff accounts from customers in identity tokens.
type SubjectType string

const (
	SubjectUser     SubjectType = "User"
	SubjectCustomer SubjectType = "Customer"
)

func (s SubjectType) IsValid() bool {
	return s == SubjectUser || s == SubjectCustomer
}

// ActorRole is the role claim carried by identity tokens.
type ActorRole string

const (
	RolePlatformAdmin     ActorRole = "PlatformAdmin"
	RoleRestaurantManager ActorRole = "RestaurantManager"
	RoleRestaurantStaff   ActorRole = "RestaurantStaff"
	RoleKitchenStaff      ActorRole = "KitchenStaff"
	RoleCustomer          ActorRole = "Customer"
)

var validActorRoles = []ActorRole{
	RolePlatformAdmin,
	RoleRestaurantManager,
	RoleRestaurantStaff,
	RoleKitchenStaff,
	RoleCustomer,
}

// String implements fmt.Stringer.
func (r ActorRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsRestaurantStaff reports whether the role works inside a single restaurant.
func (r ActorRole) IsRestaurantStaff() bool {
	switch r {
	case RoleRestaurantManager, RoleRestaurantStaff, RoleKitchenStaff:
		return true
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
