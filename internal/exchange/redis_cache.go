package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const defaultRedisPrefix = "discount:rates:"

// RedisCache shares rates between instances. Expiry is delegated to Redis and
// the entry bound to the server's maxmemory policy.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache constructs a Redis backed rate cache.
func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix}
}

// Get reports whether the key existed and decodes the stored rate.
func (c *RedisCache) Get(ctx context.Context, key string) (decimal.Decimal, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return decimal.Decimal{}, false, nil
	}
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, err
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, fmt.Errorf("decode cached rate %q: %w", key, err)
	}
	return rate, true, nil
}

// Put stores the rate as its exact decimal string with the provided TTL.
func (c *RedisCache) Put(ctx context.Context, key string, rate decimal.Decimal, ttl time.Duration) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Set(ctx, c.prefix+key, rate.String(), ttl).Err()
}

// Ping checks connectivity to Redis.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("redis not configured")
	}
	return c.client.Ping(ctx).Err()
}
