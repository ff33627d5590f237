package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/servio/internal/config"
)

// Store represents a generic cache backend.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Increment bumps a counter and starts its expiry on first use.
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// TTL returns the remaining lifetime of key, or zero when it is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Well-known keys.
const (
	MenuKey        = "menu:v1"
	orderKeyFormat = "orders:%d"
)

// OrderKey returns the cache key of a single order projection.
func OrderKey(id int64) string {
	return fmt.Sprintf(orderKeyFormat, id)
}

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop":
		if logger != nil {
			logger.Info("cache disabled; using noop store with local counters")
		}
		return NewNoop(), nil
	case "redis":
		return newRedisStore(lc, cfg.Cache, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// NewNoop returns a store that never caches values but still keeps counters
// in process memory, so rate limiting works without redis.
func NewNoop() Store {
	return &noopStore{counters: make(map[string]*counter)}
}

type counter struct {
	value     int64
	expiresAt time.Time
}

type noopStore struct {
	mu       sync.Mutex
	counters map[string]*counter
}

func (*noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (s *noopStore) Set(_ context.Context, key string, _ []byte, ttl time.Duration) error {
	// only markers with a lifetime are kept; values are never served back
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[key] = &counter{value: 1, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *noopStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.counters, key)
	}
	return nil
}

func (s *noopStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &counter{expiresAt: now.Add(window)}
		s.counters[key] = c
		s.sweep(now)
	}
	c.value++
	return c.value, nil
}

func (s *noopStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	remaining := time.Until(c.expiresAt)
	if remaining <= 0 {
		delete(s.counters, key)
		return 0, nil
	}
	return remaining, nil
}

// sweep drops expired counters; caller holds mu.
func (s *noopStore) sweep(now time.Time) {
	for key, c := range s.counters {
		if !now.Before(c.expiresAt) {
			delete(s.counters, key)
		}
	}
}

type redisStore struct {
	client     *goredis.Client
	defaultTTL time.Duration
}

func newRedisStore(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) (Store, error) {
	opts := &goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	client := goredis.NewClient(opts)
	store := &redisStore{client: client, defaultTTL: cfg.DefaultTTL}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			if logger != nil {
				logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if logger != nil {
				logger.Info("closing redis cache")
			}
			return client.Close()
		},
	})

	return store, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *redisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (s *redisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// negative values mean missing key or no expiry
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
