package auth

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tableserve-backend/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "tableserve",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseStaffToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()
	restaurantID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		SubjectType:  enums.SubjectUser,
		SubjectID:    userID,
		Role:         enums.RoleKitchenStaff,
		RestaurantID: &restaurantID,
		JTI:          "jti-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)

	identity := claims.Identity()
	assert.Equal(t, enums.SubjectUser, identity.SubjectType)
	assert.Equal(t, userID, identity.SubjectID)
	assert.Equal(t, enums.RoleKitchenStaff, identity.Role)
	require.NotNil(t, identity.RestaurantID)
	assert.Equal(t, restaurantID, *identity.RestaurantID)
	assert.Equal(t, "jti-1", identity.AccessID)
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)

	assert.True(t, identity.IsStaffOf(restaurantID))
	assert.False(t, identity.IsStaffOf(uuid.New()))
	assert.False(t, identity.IsCustomer())
}

func TestMintRejectsInconsistentPayloads(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()

	_, err := MintAccessToken(cfg, now, AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		SubjectID:   uuid.New(),
		Role:        enums.RoleRestaurantStaff,
	})
	assert.Error(t, err)

	_, err = MintAccessToken(cfg, now, AccessTokenPayload{
		SubjectType: enums.SubjectUser,
		SubjectID:   uuid.New(),
		Role:        enums.RoleRestaurantManager,
	})
	assert.Error(t, err, "staff roles need a restaurant")

	_, err = MintAccessToken(cfg, now, AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		Role:        enums.RoleCustomer,
	})
	assert.Error(t, err, "subject id required")
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		SubjectID:   uuid.New(),
		Role:        enums.RoleCustomer,
	})
	require.NoError(t, err)

	other := cfg
	other.Secret = "different"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		SubjectID:   uuid.New(),
		Role:        enums.RoleCustomer,
	})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

type stubSessions struct {
	live map[string]bool
}

func (s stubSessions) HasSession(_ context.Context, accessID string) (bool, error) {
	return s.live[accessID], nil
}

func TestResolver(t *testing.T) {
	cfg := testJWTConfig()
	customerID := uuid.New()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{
		SubjectType: enums.SubjectCustomer,
		SubjectID:   customerID,
		Role:        enums.RoleCustomer,
		JTI:         "live",
	})
	require.NoError(t, err)

	resolver := NewResolver(cfg, nil)
	identity, err := resolver.Resolve(context.Background(), "Bearer "+token)
	require.NoError(t, err)
	assert.Equal(t, customerID, identity.SubjectID)
	assert.True(t, identity.IsCustomer())

	identity, err = resolver.Resolve(context.Background(), token)
	require.NoError(t, err, "bare tokens are accepted for query-string credentials")
	assert.Equal(t, customerID, identity.SubjectID)

	_, err = resolver.Resolve(context.Background(), "")
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonAuthenticationFailed))

	_, err = resolver.Resolve(context.Background(), "Bearer garbage")
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonAuthenticationFailed))

	cfg.RequireSession = true
	withSessions := NewResolver(cfg, stubSessions{live: map[string]bool{}})
	_, err = withSessions.Resolve(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())

	withSessions = NewResolver(cfg, stubSessions{live: map[string]bool{"live": true}})
	_, err = withSessions.Resolve(context.Background(), token)
	assert.NoError(t, err)
}
