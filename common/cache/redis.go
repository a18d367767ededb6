package cache

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	rediscommon "github.com/algoflow/algoflow/common/redis"
)

// RedisCache backs Cache with Redis so cached lookups survive restarts
// and are shared when more than one instance runs against the same store.
type RedisCache struct {
	redis *goredis.Client
}

// NewRedisCache wraps the shared Redis connection as a Cache
func NewRedisCache(client *rediscommon.Client) *RedisCache {
	return &RedisCache{redis: client.GetUnderlying()}
}

// Get retrieves a value; a missing key is a miss, not an error
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores a value for ttl
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.redis.Set(ctx, key, value, ttl).Err()
}

// Delete removes a key
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.redis.Del(ctx, key).Err()
}

// Close is a no-op; the underlying connection is owned by bootstrap
func (c *RedisCache) Close() error {
	return nil
}
