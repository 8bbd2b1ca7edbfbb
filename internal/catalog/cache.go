package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:version"

// Cache keeps the public listing in Redis under a versioned key. Invalidation bumps the
// version so stale entries simply age out. Redis failures fall back to the loader.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Visible returns the cached listing, populating it with load on a miss.
func (c *Cache) Visible(ctx context.Context, load func(context.Context) ([]Product, error)) ([]Product, error) {
	if c == nil || c.client == nil {
		return load(ctx)
	}
	key, err := c.key(ctx)
	if err != nil {
		c.logger.Warn("catalog cache version", slog.Any("error", err))
		return load(ctx)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var products []Product
		if err := json.Unmarshal(payload, &products); err == nil {
			return products, nil
		}
		c.logger.Warn("catalog cache decode", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("catalog cache read", slog.Any("error", err))
		return load(ctx)
	}
	products, err := load(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(products)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write", slog.Any("error", err))
	}
	return products, nil
}

// Invalidate bumps the cache version.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) key(ctx context.Context) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 0
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("catalog:visible:%d", ver), nil
}
