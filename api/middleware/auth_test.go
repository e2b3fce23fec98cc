package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(auth.NewResolver(testJWT, nil), nil)(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Contains(t, resp.Body.String(), "AuthenticationFailed")
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(auth.NewResolver(testJWT, nil), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSeedsStaffIdentity(t *testing.T) {
	restaurantID := uuid.New()
	token := mintStaffToken(t, testJWT, enums.RoleKitchenStaff, restaurantID)

	var captured auth.Identity
	handler := Auth(auth.NewResolver(testJWT, nil), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		captured = identity
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, enums.SubjectUser, captured.SubjectType)
	assert.Equal(t, enums.RoleKitchenStaff, captured.Role)
	require.NotNil(t, captured.RestaurantID)
	assert.Equal(t, restaurantID, *captured.RestaurantID)
	assert.True(t, captured.IsStaffOf(restaurantID))
}

func TestAuthHonoursRevokedSession(t *testing.T) {
	cfg := testJWT
	cfg.RequireSession = true
	token := mintCustomerToken(t, cfg, uuid.New())

	for name, checker := range map[string]stubSessionVerifier{
		"revoked": {ok: false},
		"lookup":  {err: errors.New("redis down")},
	} {
		t.Run(name, func(t *testing.T) {
			handler := Auth(auth.NewResolver(cfg, checker), nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", token)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			assert.NotEqual(t, http.StatusOK, resp.Code)
		})
	}

	handler := Auth(auth.NewResolver(cfg, stubSessionVerifier{ok: true}), nil)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func mintStaffToken(t *testing.T, cfg config.JWTConfig, role enums.ActorRole, restaurantID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		SubjectType:  enums.SubjectUser,
		SubjectID:    uuid.New(),
		Role:         role,
		RestaurantID: &restaurantID,
	})
	require.NoError(t, err)
	return token
}

func mintCustomerToken(t *testing.T, cfg config.JWTConfig, customerID uuid.UUID) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg, time.Now(), auth.AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		SubjectID:   customerID,
		Role:        enums.RoleCustomer,
	})
	require.NoError(t, err)
	return token
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
