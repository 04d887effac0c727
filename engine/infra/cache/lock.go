package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

var (
	ErrLockHeld     = errors.New("lock is held by another owner")
	ErrLockNotOwned = errors.New("lock is no longer owned")
)

// Lock is a held distributed lock.
type Lock interface {
	Release(ctx context.Context) error
	Refresh(ctx context.Context) error
	Resource() string
	IsHeld() bool
}

// LockManager hands out locks for named resources.
type LockManager interface {
	Acquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error)
}

// Deletes the key only when it still carries our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Extends the TTL only when the key still carries our token.
const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

type RedisLockManager struct {
	client RedisInterface
}

func NewRedisLockManager(client RedisInterface) (*RedisLockManager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	return &RedisLockManager{client: client}, nil
}

// Acquire makes a single attempt and returns ErrLockHeld when the resource
// is taken.
func (m *RedisLockManager) Acquire(ctx context.Context, resource string, ttl time.Duration) (Lock, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("lock ttl must be positive")
	}
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, resource, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", resource, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, resource)
	}
	l := &redisLock{client: m.client, resource: resource, token: token, ttl: ttl}
	l.held.Store(true)
	return l, nil
}

// AcquireWithRetry polls until the lock is free, wait elapses or ctx ends.
func AcquireWithRetry(
	ctx context.Context,
	m LockManager,
	resource string,
	ttl, wait, interval time.Duration,
) (Lock, error) {
	if wait <= 0 {
		return m.Acquire(ctx, resource, ttl)
	}
	if interval <= 0 {
		interval = time.Second
	}
	backoff := retry.WithMaxDuration(wait, retry.NewConstant(interval))
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (Lock, error) {
		l, err := m.Acquire(ctx, resource, ttl)
		if errors.Is(err, ErrLockHeld) {
			return nil, retry.RetryableError(err)
		}
		return l, err
	})
}

type redisLock struct {
	client   RedisInterface
	resource string
	token    string
	ttl      time.Duration
	held     atomic.Bool
}

func (l *redisLock) Resource() string {
	return l.resource
}

func (l *redisLock) IsHeld() bool {
	return l.held.Load()
}

func (l *redisLock) Refresh(ctx context.Context) error {
	n, err := l.client.Eval(ctx, refreshScript, []string{l.resource}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lock %s: %w", l.resource, err)
	}
	if n == 0 {
		l.held.Store(false)
		return fmt.Errorf("%w: %s", ErrLockNotOwned, l.resource)
	}
	return nil
}

func (l *redisLock) Release(ctx context.Context) error {
	if !l.held.Swap(false) {
		return nil
	}
	n, err := l.client.Eval(ctx, releaseScript, []string{l.resource}, l.token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", l.resource, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotOwned, l.resource)
	}
	return nil
}
