package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"tickerpulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InitRedis connects to Redis at addr. Plain host:port and redis:// URLs are
// both accepted.
func InitRedis(ctx context.Context, addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// SourceCache stores per-source sentiment records keyed by
// (source, symbol, hours). Implementations must be safe for concurrent use.
type SourceCache interface {
	GetSource(ctx context.Context, key string) (*domain.SourceSentiment, bool)
	SetSource(ctx context.Context, key string, v *domain.SourceSentiment, ttl time.Duration)
}

// RedisSourceCache shares provider results across processes via Redis with
// JSON payloads. Read and write errors degrade to cache misses.
type RedisSourceCache struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisSourceCache(client *redis.Client, log zerolog.Logger) *RedisSourceCache {
	return &RedisSourceCache{client: client, log: log}
}

func (c *RedisSourceCache) GetSource(ctx context.Context, key string) (*domain.SourceSentiment, bool) {
	data, err := c.client.Get(ctx, "sentiment:"+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis sentiment cache read failed")
		return nil, false
	}
	var out domain.SourceSentiment
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return &out, true
}

func (c *RedisSourceCache) SetSource(ctx context.Context, key string, v *domain.SourceSentiment, ttl time.Duration) {
	if v == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, "sentiment:"+key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis sentiment cache write failed")
	}
}

// MemorySourceCache is the in-process fallback used when Redis is not
// configured.
type MemorySourceCache struct {
	inner *TTLCache[domain.SourceSentiment]
}

func NewMemorySourceCache() *MemorySourceCache {
	return &MemorySourceCache{inner: NewTTLCache[domain.SourceSentiment]()}
}

func (c *MemorySourceCache) GetSource(_ context.Context, key string) (*domain.SourceSentiment, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	return &v, true
}

func (c *MemorySourceCache) SetSource(_ context.Context, key string, v *domain.SourceSentiment, ttl time.Duration) {
	if v == nil {
		return
	}
	c.inner.Set(key, *v, ttl)
}
