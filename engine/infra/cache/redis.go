package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/compozy/graphsync/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisInterface is the subset of go-redis used by the lock manager.
type RedisInterface interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

type Redis struct {
	client redis.UniversalClient
	config *Config
	once   sync.Once
}

const fallbackRedisPingTimeout time.Duration = 10 * time.Second

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, cfg *Config) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	client, err := buildRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = fallbackRedisPingTimeout
	}
	if err := pingRedis(ctx, client, timeout); err != nil {
		_ = client.Close()
		return nil, err
	}
	logger.FromContext(ctx).Info("Redis connection established", "addr", redisAddr(cfg), "db", cfg.DB)
	return &Redis{client: client, config: cfg}, nil
}

func buildRedisClient(cfg *Config) (redis.UniversalClient, error) {
	if cfg.URL != "" {
		opt, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		if cfg.DialTimeout > 0 {
			opt.DialTimeout = cfg.DialTimeout
		}
		return redis.NewClient(opt), nil
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis url or addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	}), nil
}

func pingRedis(ctx context.Context, client redis.UniversalClient, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("pinging Redis server (timeout=%s): %w", timeout, err)
	}
	return nil
}

// redisAddr returns a log-safe endpoint description.
func redisAddr(cfg *Config) string {
	if cfg.URL != "" {
		if opt, err := redis.ParseURL(cfg.URL); err == nil {
			return opt.Addr
		}
		return "invalid-url"
	}
	return cfg.Addr
}

func (r *Redis) Client() redis.UniversalClient {
	return r.client
}

// Close is idempotent.
func (r *Redis) Close() error {
	var err error
	r.once.Do(func() {
		err = r.client.Close()
	})
	return err
}

// MiniredisEmbedded is an in-process Redis used by the dev command when no
// external Redis is configured.
type MiniredisEmbedded struct {
	server *miniredis.Miniredis
	client redis.UniversalClient
	once   sync.Once
}

func NewMiniredisEmbedded(ctx context.Context) (*MiniredisEmbedded, error) {
	server := miniredis.NewMiniRedis()
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("starting embedded redis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	if err := pingRedis(ctx, client, fallbackRedisPingTimeout); err != nil {
		_ = client.Close()
		server.Close()
		return nil, err
	}
	logger.FromContext(ctx).Debug("Embedded redis started", "addr", server.Addr())
	return &MiniredisEmbedded{server: server, client: client}, nil
}

func (m *MiniredisEmbedded) Client() redis.UniversalClient {
	return m.client
}

func (m *MiniredisEmbedded) Addr() string {
	return m.server.Addr()
}

func (m *MiniredisEmbedded) Close() error {
	var err error
	m.once.Do(func() {
		err = m.client.Close()
		m.server.Close()
	})
	return err
}
