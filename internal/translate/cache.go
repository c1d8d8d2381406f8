package translate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	// Get returns ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const (
	DefaultCacheMaxEntries = 500
	DefaultCacheEvictCount = 100
)

// MemoryCache is a bounded in-process cache. Once it holds more than
// maxEntries entries the evictCount oldest insertions are dropped. Reads do
// not refresh an entry's position.
type MemoryCache struct {
	maxEntries int
	evictCount int

	mu      sync.Mutex
	entries map[string]string
	order   []string
}

func NewMemoryCache(maxEntries, evictCount int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	if evictCount <= 0 {
		evictCount = DefaultCacheEvictCount
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		evictCount: evictCount,
		entries:    make(map[string]string),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", ErrCacheMiss
	}
	return v, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
	}
	c.entries[key] = value

	if len(c.entries) > c.maxEntries {
		n := min(c.evictCount, len(c.order))
		for _, k := range c.order[:n] {
			delete(c.entries, k)
		}
		c.order = append(c.order[:0:0], c.order[n:]...)
	}
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RedisCache shares translations between server instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(addr string, ttl time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: addr}), ttl)
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "meet:translate", ttl: ttl}
}

// Ping checks connectivity. Callers treat failure as a startup warning; the
// cache keeps working as a permanent miss until Redis comes back.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

func (c *RedisCache) buildKey(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.buildKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get from redis: %w", err)
	}
	return v, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, c.buildKey(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
