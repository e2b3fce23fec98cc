package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultTTL = 30 * time.Second

// Lock is an exclusive advisory lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Store defines the redis operations used by RedisLock.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLock implements Lock using SETNX + TTL with an owner token so that a
// holder never releases a lock that expired and was taken by someone else.
type RedisLock struct {
	client Store
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock.
func NewRedisLock(client Store, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// Key returns the redis key guarded by the lock.
func (l *RedisLock) Key() string {
	return l.key
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if the owner token still matches. A lock that
// expired and was taken over is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	owner := l.owner
	l.owner = ""
	if _, err := l.client.DeleteIfEquals(ctx, l.key, owner); err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	return nil
}

// Factory builds locks for a key namespace.
type Factory struct {
	client Store
	keyFn  func(scope, id string) string
	ttl    time.Duration
}

// NewFactory returns a Factory; keyFn namespaces scope/id pairs (see redis.Client.LockKey).
func NewFactory(client Store, keyFn func(scope, id string) string, ttl time.Duration) (*Factory, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock factory")
	}
	if keyFn == nil {
		return nil, errors.New("lock key builder required")
	}
	return &Factory{client: client, keyFn: keyFn, ttl: ttl}, nil
}

// For returns a fresh lock for scope/id.
func (f *Factory) For(scope, id string) (Lock, error) {
	return NewRedisLock(f.client, f.keyFn(scope, id), f.ttl)
}
