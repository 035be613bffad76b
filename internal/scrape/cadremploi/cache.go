package cadremploi

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache remembers resolved redirect URLs so reruns over the same mailbox do
// not walk the same tracking chains again. Only successful resolutions are
// stored.
type Cache interface {
	Get(ctx context.Context, redirectURL string) (string, bool)
	Set(ctx context.Context, redirectURL, resolved string)
}

type MemoryCache struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string]string)}
}

func (c *MemoryCache) Get(_ context.Context, k string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[k]
	return v, ok
}

func (c *MemoryCache) Set(_ context.Context, k, v string) {
	c.mu.Lock()
	c.m[k] = v
	c.mu.Unlock()
}

const redisKeyPrefix = "jobmail:cadremploi:resolve:"

// RedisCache shares resolutions between processes. Redis errors degrade to
// cache misses.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisCache) Get(ctx context.Context, k string) (string, bool) {
	v, err := c.rdb.Get(ctx, redisKeyPrefix+k).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn().Err(err).Msg("redis get failed")
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, k, v string) {
	if err := c.rdb.Set(ctx, redisKeyPrefix+k, v, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Msg("redis set failed")
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) (string, bool) { return "", false }
func (noCache) Set(context.Context, string, string)        {}
