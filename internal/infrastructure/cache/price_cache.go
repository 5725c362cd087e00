// Package cache provides the Redis price resolution cache, its PostgreSQL
// LISTEN/NOTIFY invalidation and the request idempotency store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"workshop/internal/domain/pricing"
	"workshop/pkg/logger"
)

const (
	defaultPrefix = "workshop:prices"
	defaultTTL    = 10 * time.Minute
)

// PriceCache memoizes price resolutions in Redis. Keys carry a generation
// number; Invalidate bumps it so every instance drops its entries at once.
// Concurrent misses of the same key share one load.
type PriceCache struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	group  singleflight.Group
}

// NewPriceCache creates a cache. ttl <= 0 uses the default.
func NewPriceCache(rdb redis.UniversalClient, ttl time.Duration) *PriceCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &PriceCache{rdb: rdb, prefix: defaultPrefix, ttl: ttl}
}

func (c *PriceCache) versionKey() string {
	return c.prefix + ":version"
}

func (c *PriceCache) generation(ctx context.Context) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// FetchResolution returns the cached resolution for key or loads and stores it.
// Redis errors degrade to a direct load.
func (c *PriceCache) FetchResolution(
	ctx context.Context,
	key string,
	load func(ctx context.Context) (pricing.Resolution, error),
) (pricing.Resolution, error) {
	gen, err := c.generation(ctx)
	if err != nil {
		logger.Warn(ctx, "price cache unavailable", "error", err)
		return load(ctx)
	}
	fullKey := fmt.Sprintf("%s:v%d:%s", c.prefix, gen, key)

	raw, err := c.rdb.Get(ctx, fullKey).Bytes()
	switch {
	case err == nil:
		var res pricing.Resolution
		if jsonErr := json.Unmarshal(raw, &res); jsonErr == nil {
			return res, nil
		}
		logger.Warn(ctx, "drop undecodable price cache entry", "key", fullKey)
	case !errors.Is(err, redis.Nil):
		logger.Warn(ctx, "price cache read failed", "key", fullKey, "error", err)
		return load(ctx)
	}

	v, err, _ := c.group.Do(fullKey, func() (any, error) {
		res, err := load(ctx)
		if err != nil {
			return pricing.Resolution{}, err
		}
		body, err := json.Marshal(res)
		if err != nil {
			return res, nil
		}
		if err := c.rdb.Set(ctx, fullKey, body, c.ttl).Err(); err != nil {
			logger.Warn(ctx, "price cache write failed", "key", fullKey, "error", err)
		}
		return res, nil
	})
	if err != nil {
		return pricing.Resolution{}, err
	}
	return v.(pricing.Resolution), nil
}

// Invalidate starts a new key generation. Old entries expire by TTL.
func (c *PriceCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Incr(ctx, c.versionKey()).Err(); err != nil {
		return fmt.Errorf("bump price cache version: %w", err)
	}
	return nil
}

var _ pricing.Cache = (*PriceCache)(nil)
