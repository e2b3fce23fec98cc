package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/tableserve-backend/pkg/config"
	"github.com/angelmondragon/tableserve-backend/pkg/enums"
	redisclient "github.com/angelmondragon/tableserve-backend/pkg/redis"
)

var errAccessIDRequired = errors.New("access id is required")

type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AccessSessionKey(accessID string) string
}

// Record is the value kept per live access id.
type Record struct {
	SubjectID uuid.UUID       `json:"subjectId"`
	Role      enums.ActorRole `json:"role"`
	IssuedAt  time.Time       `json:"issuedAt"`
}

// Manager tracks which access token ids (jti) are live. When
// TABLESERVE_JWT_REQUIRE_SESSION is on, a token whose id is missing here is
// rejected even if its signature and expiry are valid.
type Manager struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg.AccessTTL())
}

func newManager(s store, ttl time.Duration) (*Manager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("access token ttl must be positive")
	}
	return &Manager{store: s, ttl: ttl, now: time.Now}, nil
}

// Register marks accessID live for one access token lifetime.
func (m *Manager) Register(ctx context.Context, accessID string, subjectID uuid.UUID, role enums.ActorRole) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	payload, err := json.Marshal(Record{SubjectID: subjectID, Role: role, IssuedAt: m.now().UTC()})
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.store.AccessSessionKey(accessID), string(payload), m.ttl)
}

// Lookup returns the record for accessID, or nil when there is none.
func (m *Manager) Lookup(ctx context.Context, accessID string) (*Record, error) {
	if strings.TrimSpace(accessID) == "" {
		return nil, errAccessIDRequired
	}
	raw, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if errors.Is(err, redislib.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", accessID, err)
	}
	return &rec, nil
}

// HasSession reports whether accessID is still live.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	rec, err := m.Lookup(ctx, accessID)
	return rec != nil, err
}

// Revoke ends the session. Revoking an unknown id is not an error.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errAccessIDRequired
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}
