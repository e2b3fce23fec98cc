package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

func TestRequireRoles(t *testing.T) {
	restaurantID := uuid.New()
	tests := []struct {
		name     string
		identity *auth.Identity
		want     int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", &auth.Identity{SubjectType: enums.SubjectCustomer, SubjectID: uuid.New(), Role: enums.RoleCustomer}, http.StatusOK},
		{"customer with forged role", &auth.Identity{SubjectType: enums.SubjectCustomer, SubjectID: uuid.New(), Role: enums.RoleRestaurantManager}, http.StatusOK},
		{"manager", &auth.Identity{SubjectType: enums.SubjectUser, SubjectID: uuid.New(), Role: enums.RoleRestaurantManager, RestaurantID: &restaurantID}, http.StatusForbidden},
		{"admin", &auth.Identity{SubjectType: enums.SubjectUser, SubjectID: uuid.New(), Role: enums.RolePlatformAdmin}, http.StatusForbidden},
	}

	handler := RequireRoles(nil, enums.RoleCustomer)(okHandler())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.identity))
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.Equal(t, tt.want, resp.Code)
		})
	}
}
