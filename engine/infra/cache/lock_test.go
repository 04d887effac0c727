package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(t *testing.T) context.Context {
	t.Helper()
	return logger.ContextWithLogger(t.Context(), logger.NewForTests())
}

func setupLockManager(t *testing.T) (*RedisLockManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	m, err := NewRedisLockManager(client)
	require.NoError(t, err)
	return m, mr
}

func TestRedisLockManager_Acquire(t *testing.T) {
	t.Run("Should grant the lock to a single owner", func(t *testing.T) {
		ctx := newTestContext(t)
		m, mr := setupLockManager(t)

		lock, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)
		assert.True(t, lock.IsHeld())
		assert.Equal(t, "graphsync:lock", lock.Resource())
		assert.True(t, mr.Exists("graphsync:lock"))

		_, err = m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockHeld))
	})

	t.Run("Should free the resource on release", func(t *testing.T) {
		ctx := newTestContext(t)
		m, mr := setupLockManager(t)
		lock, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)

		require.NoError(t, lock.Release(ctx))
		assert.False(t, lock.IsHeld())
		assert.False(t, mr.Exists("graphsync:lock"))
		require.NoError(t, lock.Release(ctx), "second release is a no-op")

		_, err = m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)
	})

	t.Run("Should not delete a lock taken over by another owner", func(t *testing.T) {
		ctx := newTestContext(t)
		m, mr := setupLockManager(t)
		lock, err := m.Acquire(ctx, "graphsync:lock", time.Second)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		other, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)

		err = lock.Release(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockNotOwned))
		assert.True(t, other.IsHeld())
		assert.True(t, mr.Exists("graphsync:lock"))
	})

	t.Run("Should reject a non-positive ttl", func(t *testing.T) {
		m, _ := setupLockManager(t)
		_, err := m.Acquire(newTestContext(t), "graphsync:lock", 0)
		require.Error(t, err)
	})
}

func TestRedisLock_Refresh(t *testing.T) {
	t.Run("Should extend the ttl while owned", func(t *testing.T) {
		ctx := newTestContext(t)
		m, mr := setupLockManager(t)
		lock, err := m.Acquire(ctx, "graphsync:lock", 10*time.Second)
		require.NoError(t, err)

		mr.FastForward(8 * time.Second)
		require.NoError(t, lock.Refresh(ctx))
		assert.Greater(t, mr.TTL("graphsync:lock"), 5*time.Second)
	})

	t.Run("Should report loss of ownership after expiry", func(t *testing.T) {
		ctx := newTestContext(t)
		m, mr := setupLockManager(t)
		lock, err := m.Acquire(ctx, "graphsync:lock", time.Second)
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		err = lock.Refresh(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockNotOwned))
		assert.False(t, lock.IsHeld())
	})
}

func TestAcquireWithRetry(t *testing.T) {
	t.Run("Should wait until the holder releases", func(t *testing.T) {
		ctx := newTestContext(t)
		m, _ := setupLockManager(t)
		first, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)
		time.AfterFunc(150*time.Millisecond, func() { _ = first.Release(context.Background()) })

		lock, err := AcquireWithRetry(ctx, m, "graphsync:lock", time.Minute, 5*time.Second, 50*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, lock.IsHeld())
	})

	t.Run("Should give up after the wait timeout", func(t *testing.T) {
		ctx := newTestContext(t)
		m, _ := setupLockManager(t)
		_, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)

		_, err = AcquireWithRetry(ctx, m, "graphsync:lock", time.Minute, 200*time.Millisecond, 50*time.Millisecond)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrLockHeld))
	})

	t.Run("Should make one attempt without a wait timeout", func(t *testing.T) {
		ctx := newTestContext(t)
		m, _ := setupLockManager(t)
		_, err := m.Acquire(ctx, "graphsync:lock", time.Minute)
		require.NoError(t, err)

		_, err = AcquireWithRetry(ctx, m, "graphsync:lock", time.Minute, 0, 0)
		assert.True(t, errors.Is(err, ErrLockHeld))
	})
}

func TestRedisConnections(t *testing.T) {
	t.Run("Should connect through a URL", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r, err := NewRedis(newTestContext(t), &Config{URL: "redis://" + mr.Addr() + "/0"})
		require.NoError(t, err)
		require.NoError(t, r.Client().Ping(t.Context()).Err())
		require.NoError(t, r.Close())
		require.NoError(t, r.Close())
	})

	t.Run("Should fail fast when the server is unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := NewRedis(newTestContext(t), &Config{Addr: addr, PingTimeout: 500 * time.Millisecond})
		require.Error(t, err)
	})

	t.Run("Should run an embedded server", func(t *testing.T) {
		ctx := newTestContext(t)
		embedded, err := NewMiniredisEmbedded(ctx)
		require.NoError(t, err)
		require.NoError(t, embedded.Client().Ping(ctx).Err())
		assert.NotEmpty(t, embedded.Addr())
		require.NoError(t, embedded.Close())
		require.NoError(t, embedded.Close())
	})
}
