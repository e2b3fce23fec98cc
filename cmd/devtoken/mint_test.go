package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tableserve-backend/pkg/auth"
	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
)

type recordingSessions struct {
	registered map[string]uuid.UUID
	revoked    []string
}

func (r *recordingSessions) Register(_ context.Context, accessID string, subjectID uuid.UUID, _ enums.ActorRole) error {
	if r.registered == nil {
		r.registered = map[string]uuid.UUID{}
	}
	r.registered[accessID] = subjectID
	return nil
}

func (r *recordingSessions) Revoke(_ context.Context, accessID string) error {
	r.revoked = append(r.revoked, accessID)
	return nil
}

var testJWT = config.JWTConfig{Secret: "devtoken-secret", Issuer: "tableserve", ExpirationMinutes: 30}

func TestMintRegistersSessionForToken(t *testing.T) {
	sessions := &recordingSessions{}
	restaurant := uuid.New()
	var out bytes.Buffer

	err := mint(context.Background(), testJWT, sessions, options{
		subjectType:  "User",
		role:         "KitchenStaff",
		restaurantID: restaurant.String(),
	}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	claims, err := auth.ParseAccessToken(testJWT, lines[1])
	require.NoError(t, err)
	assert.Equal(t, enums.RoleKitchenStaff, claims.Role)
	require.NotNil(t, claims.RestaurantID)
	assert.Equal(t, restaurant, *claims.RestaurantID)
	assert.Equal(t, claims.SubjectID, sessions.registered[claims.ID])
}

func TestMintWithoutSessionStore(t *testing.T) {
	var out bytes.Buffer
	err := mint(context.Background(), testJWT, nil, options{subjectType: "Customer", role: "Customer"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "role=Customer")
}

func TestMintRejectsBadInput(t *testing.T) {
	var out bytes.Buffer
	cases := []options{
		{subjectType: "User", role: "Chef"},
		{subjectType: "User", role: "PlatformAdmin", subjectID: "nope"},
		{subjectType: "User", role: "KitchenStaff"},
		{subjectType: "User", role: "KitchenStaff", restaurantID: "nope"},
	}
	for _, opts := range cases {
		assert.Error(t, mint(context.Background(), testJWT, nil, opts, &out), "%+v", opts)
	}
}

func TestRevoke(t *testing.T) {
	sessions := &recordingSessions{}
	var out bytes.Buffer
	require.NoError(t, revoke(context.Background(), sessions, "jti-1", &out))
	assert.Equal(t, []string{"jti-1"}, sessions.revoked)

	assert.Error(t, revoke(context.Background(), nil, "jti-1", &out))
}
