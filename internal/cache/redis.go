package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss means the key was never written or has expired. It is a
	// normal outcome, not a failure.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheUnavailable means the backend could not be reached or timed
	// out. Callers must not treat it as a miss.
	ErrCacheUnavailable = errors.New("cache: backend unavailable")

	// ErrInvalidKey means the caller supplied a malformed identifier.
	ErrInvalidKey = errors.New("cache: invalid identifier")
)

type CacheConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisCache is a thin raw-bytes store over go-redis. It owns the mapping
// from client errors onto the ErrCacheMiss / ErrCacheUnavailable taxonomy;
// everything above it works in terms of those two sentinels.
type RedisCache struct {
	client  *redis.Client
	metrics *CacheMetrics
}

func NewRedisCache(config *CacheConfig) *RedisCache {
	if config == nil {
		config = DefaultCacheConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	return NewRedisCacheWithClient(client)
}

// NewRedisCacheWithClient wraps an existing client. Used when the process
// shares one connection pool between the cache, the rate limiter and the
// job queue, and by tests running against miniredis.
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		metrics: NewCacheMetrics(),
	}
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.metrics.RecordUnavailable()
		return classifyErr(err)
	}
	c.metrics.RecordSet()
	return nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.RecordMiss()
			return nil, ErrCacheMiss
		}
		c.metrics.RecordUnavailable()
		return nil, classifyErr(err)
	}
	c.metrics.RecordHit()
	return data, nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		c.metrics.RecordUnavailable()
		return false, classifyErr(err)
	}
	return n > 0, nil
}

// Delete removes the given keys. Deleting absent keys is not an error.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.metrics.RecordUnavailable()
		return classifyErr(err)
	}
	c.metrics.RecordDelete()
	return nil
}

func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, classifyErr(err)
	}
	return ttl, nil
}

func (c *RedisCache) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return classifyErr(err)
	}
	return nil
}

func (c *RedisCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"type":    "redis",
		"metrics": c.metrics.GetStats(),
	}
	stats["hit_rate_percent"] = c.metrics.HitRate()

	pool := c.client.PoolStats()
	stats["pool"] = map[string]interface{}{
		"hits":        pool.Hits,
		"misses":      pool.Misses,
		"timeouts":    pool.Timeouts,
		"total_conns": pool.TotalConns,
		"idle_conns":  pool.IdleConns,
	}
	return stats
}

func (c *RedisCache) Metrics() *CacheMetrics {
	return c.metrics
}

func (c *RedisCache) Client() *redis.Client {
	return c.client
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// classifyErr folds transport-level failures into ErrCacheUnavailable while
// preserving the underlying cause. redis.Nil never reaches here via Get; for
// pipeline results it is mapped to ErrCacheMiss.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	// go-redis reports a closed client and refused connections as plain
	// errors; anything that is not a miss is an availability problem from
	// the caller's point of view.
	return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
}
