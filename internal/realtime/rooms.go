package realtime

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tableserve-backend/internal/notify"
	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

var staffRoomRoles = map[enums.ActorRole]struct{}{
	enums.RolePlatformAdmin:     {},
	enums.RoleRestaurantManager: {},
	enums.RoleRestaurantStaff:   {},
	enums.RoleKitchenStaff:      {},
}

// isStaffRole reports whether role may join a restaurant room and issue
// staff commands there.
func isStaffRole(role enums.ActorRole) bool {
	_, ok := staffRoomRoles[role]
	return ok
}

// AllowedRooms derives room membership from the resolved identity alone.
// Client supplied ids never widen it.
func AllowedRooms(identity auth.Identity) []string {
	switch identity.SubjectType {
	case enums.SubjectCustomer:
		if identity.SubjectID == uuid.Nil {
			return nil
		}
		return []string{notify.CustomerRoom(identity.SubjectID)}
	case enums.SubjectUser:
		if !isStaffRole(identity.Role) {
			return nil
		}
		if identity.RestaurantID == nil || *identity.RestaurantID == uuid.Nil {
			return nil
		}
		return []string{notify.RestaurantRoom(*identity.RestaurantID)}
	}
	return nil
}

func canJoin(identity auth.Identity, room string) bool {
	for _, allowed := range AllowedRooms(identity) {
		if allowed == room {
			return true
		}
	}
	return false
}
