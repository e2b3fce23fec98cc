package auth

import (
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	"github.com/angelmondragon/tableserve-backend/pkg/outbox"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Identity is the resolved caller behind a bearer credential.
type Identity struct {
	SubjectType  enums.SubjectType
	SubjectID    uuid.UUID
	Role         enums.ActorRole
	RestaurantID *uuid.UUID
	AccessID     string
}

// IsCustomer reports whether the caller is an end customer.
func (i Identity) IsCustomer() bool {
	return i.SubjectType == enums.SubjectCustomer
}

// IsStaffOf reports whether the caller works for restaurantID. Platform admins
// count as staff of every restaurant.
func (i Identity) IsStaffOf(restaurantID uuid.UUID) bool {
	if i.SubjectType != enums.SubjectUser {
		return false
	}
	if i.Role == enums.RolePlatformAdmin {
		return true
	}
	return i.Role.IsRestaurantStaff() && i.RestaurantID != nil && *i.RestaurantID == restaurantID
}

// ActorRef is the identity as recorded on outbox envelopes.
func (i Identity) ActorRef() *outbox.ActorRef {
	return &outbox.ActorRef{
		SubjectID:    i.SubjectID,
		SubjectType:  string(i.SubjectType),
		Role:         string(i.Role),
		RestaurantID: i.RestaurantID,
	}
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	SubjectType  enums.SubjectType
	SubjectID    uuid.UUID
	Role         enums.ActorRole
	RestaurantID *uuid.UUID
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	SubjectType  enums.SubjectType `json:"subject_type"`
	SubjectID    uuid.UUID         `json:"subject_id"`
	Role         enums.ActorRole   `json:"role"`
	RestaurantID *uuid.UUID        `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}

// Identity projects the claims onto the caller identity.
func (c *AccessTokenClaims) Identity() Identity {
	return Identity{
		SubjectType:  c.SubjectType,
		SubjectID:    c.SubjectID,
		Role:         c.Role,
		RestaurantID: c.RestaurantID,
		AccessID:     c.ID,
	}
}
