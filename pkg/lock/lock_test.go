package lock

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	if m.data[key] != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func TestRedisLockExclusive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()

	first, err := NewRedisLock(store, "ts:lock:group_payment:c1", time.Second)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "ts:lock:group_payment:c1", time.Second)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// releasing a lock never acquired is a no-op
	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.data, "ts:lock:group_payment:c1")

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseSkipsForeignOwner(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	l, err := NewRedisLock(store, "k", time.Second)
	require.NoError(t, err)

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.data["k"] = "someone-else"
	require.NoError(t, l.Release(ctx))
	assert.Equal(t, "someone-else", store.data["k"])
}

func TestNewRedisLockValidation(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Second)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryStore(), "", time.Second)
	assert.Error(t, err)

	l, err := NewRedisLock(newMemoryStore(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTTL, l.ttl)
}

func TestFactoryNamespacesKeys(t *testing.T) {
	f, err := NewFactory(newMemoryStore(), func(scope, id string) string { return "ts:lock:" + scope + ":" + id }, time.Second)
	require.NoError(t, err)
	l, err := f.For("group_payment", "c9")
	require.NoError(t, err)
	assert.Equal(t, "ts:lock:group_payment:c9", l.(*RedisLock).Key())
}
