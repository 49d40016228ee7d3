package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")

	// errStaleFill means an invalidation ran while the value was being fetched
	errStaleFill = errors.New("cache fill raced an invalidation")
)

// CacheConfig pairs a key prefix with its TTL
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Profile listings for the admin dashboard
	ProfileCacheConfig = CacheConfig{TTL: 5 * time.Minute, Prefix: "profile:"}
	StudentCacheConfig = CacheConfig{TTL: 10 * time.Minute, Prefix: "student:"}
)

// CacheHelper provides prefixed JSON caching on top of a redis client.
// A nil client turns every call into a miss.
type CacheHelper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCacheHelper(client *redis.Client, cfg CacheConfig) *CacheHelper {
	return &CacheHelper{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (c *CacheHelper) Key(key string) string {
	return c.prefix + key
}

func (c *CacheHelper) TTL() time.Duration {
	return c.ttl
}

func (c *CacheHelper) Get(ctx context.Context, key string, dest any) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	data, err := c.client.Get(ctx, c.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

func (c *CacheHelper) Set(ctx context.Context, key string, value any) error {
	if c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.client.Set(ctx, c.Key(key), data, c.ttl).Err()
}

// generationKey counts invalidations under the prefix; it never matches a data pattern
func (c *CacheHelper) generationKey() string {
	return c.prefix + "_gen"
}

func (c *CacheHelper) generation(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// bump makes every fill that read the previous generation a no-op
func (c *CacheHelper) bump(ctx context.Context) error {
	return c.client.Incr(ctx, c.generationKey()).Err()
}

// setIfGeneration stores value only when no invalidation ran since gen was read
func (c *CacheHelper) setIfGeneration(ctx context.Context, key string, value any, gen int64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, c.generationKey()).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.Key(key), data, c.ttl)
			return nil
		})
		return err
	}, c.generationKey())
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleFill
	}
	return err
}

// Delete bumps the generation before removing the keys, so a failed DEL
// still keeps in-flight fills from writing old values back.
func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	if err := c.bump(ctx); err != nil {
		return fmt.Errorf("cache bump generation: %w", err)
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.Key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// InvalidatePattern removes all keys matching pattern using SCAN
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}
	if err := c.bump(ctx); err != nil {
		return fmt.Errorf("cache bump generation: %w", err)
	}

	var (
		cursor uint64
		keys   []string
	)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.Key(pattern), 100).Result()
		if err != nil {
			return fmt.Errorf("cache scan: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	const batchSize = 100
	for i := 0; i < len(keys); i += batchSize {
		pipe.Del(ctx, keys[i:min(i+batchSize, len(keys))]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache pipeline delete: %w", err)
	}
	return nil
}

// CacheOrExecute implements cache-aside: a hit returns the cached value, a miss
// runs fetch and stores the result unless an invalidation ran during the fetch.
func CacheOrExecute[T any](ctx context.Context, c *CacheHelper, key string, fetch func() (T, error)) (T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return cached, nil
	}
	if errors.Is(err, ErrCacheNotAvailable) {
		return fetch()
	}
	if !errors.Is(err, ErrCacheNotFound) {
		slog.InfoContext(ctx, "Cache get error, proceeding to fetch", "error", err, "key", key)
	}

	gen, genErr := c.generation(ctx)

	value, err := fetch()
	if err != nil {
		return value, err
	}

	if genErr != nil {
		slog.WarnContext(ctx, "Cache generation unavailable, skipping fill", "error", genErr, "key", key)
		return value, nil
	}
	if err := c.setIfGeneration(ctx, key, value, gen); err != nil {
		if errors.Is(err, errStaleFill) {
			slog.DebugContext(ctx, "Dropping stale cache fill", "key", key)
		} else {
			slog.ErrorContext(ctx, "Cache set error", "error", err, "key", key)
		}
	}
	return value, nil
}

// CacheManager holds the helpers used by the repositories
type CacheManager struct {
	Profile *CacheHelper
	Student *CacheHelper

	client *redis.Client
}

func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		Profile: NewCacheHelper(client, ProfileCacheConfig),
		Student: NewCacheHelper(client, StudentCacheConfig),
		client:  client,
	}
}

// HealthCheck verifies cache connectivity
func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
