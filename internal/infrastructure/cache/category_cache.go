// Package cache provides a Redis read-through cache for category markups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"farmacia/internal/domain/pricing"
	"farmacia/pkg/logger"
)

const (
	keyPrefix  = "farmacia:pricing:category:"
	DefaultTTL = 5 * time.Minute
)

type cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CategoryCache wraps a ConfigStore and caches GetCategoryByName in Redis.
// Readers only fill an empty key (SETNX). Updates overwrite the key with the
// committed row, so a reader that loaded the previous row before the update
// cannot put it back. Redis failures are logged and the store is used
// directly.
type CategoryCache struct {
	pricing.ConfigStore
	rdb cmdable
	ttl time.Duration
}

var _ pricing.ConfigStore = (*CategoryCache)(nil)

// NewCategoryCache creates the decorator. A non-positive ttl uses DefaultTTL.
func NewCategoryCache(store pricing.ConfigStore, rdb *redis.Client, ttl time.Duration) *CategoryCache {
	return newCategoryCache(store, rdb, ttl)
}

func newCategoryCache(store pricing.ConfigStore, rdb cmdable, ttl time.Duration) *CategoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CategoryCache{ConfigStore: store, rdb: rdb, ttl: ttl}
}

func categoryKey(name string) string {
	return keyPrefix + name
}

// GetCategoryByName returns the cached category or loads it from the store.
// NotFound results are not cached.
func (c *CategoryCache) GetCategoryByName(ctx context.Context, name string) (*pricing.CategoryMarkup, error) {
	key := categoryKey(name)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cat pricing.CategoryMarkup
		if jerr := json.Unmarshal(raw, &cat); jerr == nil {
			return &cat, nil
		}
		logger.Warn(ctx, "dropping unreadable cached category", "key", key)
		c.drop(ctx, name)
	case !errors.Is(err, redis.Nil):
		logger.Warn(ctx, "category cache read failed", "key", key, "error", err)
	}

	cat, err := c.ConfigStore.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, err
	}

	c.fill(ctx, cat)
	return cat, nil
}

// fill caches cat unless the key already holds a newer write.
func (c *CategoryCache) fill(ctx context.Context, cat *pricing.CategoryMarkup) {
	key := categoryKey(cat.CategoryName)
	payload, err := json.Marshal(cat)
	if err != nil {
		return
	}
	if err := c.rdb.SetNX(ctx, key, payload, c.ttl).Err(); err != nil {
		logger.Warn(ctx, "category cache write failed", "key", key, "error", err)
	}
}

// UpdateCategory updates the store and writes the new row through.
// When the write-through fails the entry is dropped instead.
func (c *CategoryCache) UpdateCategory(ctx context.Context, name string, patch pricing.CategoryPatch) (*pricing.CategoryMarkup, error) {
	cat, err := c.ConfigStore.UpdateCategory(ctx, name, patch)
	if err != nil {
		c.drop(ctx, name)
		return nil, err
	}
	payload, err := json.Marshal(cat)
	if err == nil {
		err = c.rdb.Set(ctx, categoryKey(name), payload, c.ttl).Err()
	}
	if err != nil {
		logger.Warn(ctx, "category cache write-through failed", "category", name, "error", err)
		c.drop(ctx, name)
	}
	return cat, nil
}

// CreateCategory creates in the store and invalidates the entry.
func (c *CategoryCache) CreateCategory(ctx context.Context, category *pricing.CategoryMarkup) error {
	err := c.ConfigStore.CreateCategory(ctx, category)
	c.drop(ctx, category.CategoryName)
	return err
}

func (c *CategoryCache) drop(ctx context.Context, name string) {
	if err := c.rdb.Del(ctx, categoryKey(name)).Err(); err != nil {
		logger.Warn(ctx, "category cache invalidation failed", "category", name, "error", err)
	}
}

// Connect parses a redis URL and verifies connectivity.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
