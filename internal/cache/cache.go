// Package cache keeps read-through copies of availability rules and
// validation configs. Writers invalidate explicitly after commit. Booking
// day lists are never cached: they change with every admission.
package cache

import (
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"encoding/json"
	"sync"
	"time"
)

const keyPrefix = "agenda:"

type Cache struct {
	store Store
	ttl   time.Duration
	log   *logger.Logger

	// gens counts invalidations per key. A load that started before an
	// invalidation must not write its result back.
	mu   sync.Mutex
	gens map[string]uint64
}

func New(store Store, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{store: store, ttl: ttl, log: log.Component("cache"), gens: make(map[string]uint64)}
}

func RulesKey(resourceID string) string {
	return keyPrefix + "rules:" + resourceID
}

func ConfigKey(resourceID string) string {
	return keyPrefix + "config:" + resourceID
}

// A nil *Cache passes every read straight to load.

func (c *Cache) Rules(ctx context.Context, resourceID string, load func(context.Context) ([]model.AvailabilityRule, error)) ([]model.AvailabilityRule, error) {
	return getOrLoad(ctx, c, RulesKey(resourceID), load)
}

func (c *Cache) Config(ctx context.Context, resourceID string, load func(context.Context) (model.ValidationConfig, error)) (model.ValidationConfig, error) {
	return getOrLoad(ctx, c, ConfigKey(resourceID), load)
}

func (c *Cache) InvalidateRules(ctx context.Context, resourceID string) {
	c.invalidate(ctx, RulesKey(resourceID))
}

func (c *Cache) InvalidateConfig(ctx context.Context, resourceID string) {
	c.invalidate(ctx, ConfigKey(resourceID))
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.store.Close()
}

func (c *Cache) invalidate(ctx context.Context, key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	if err := c.store.Delete(ctx, key); err != nil {
		c.log.Warn("Cache invalidation failed", "key", key, "error", err)
	}
}

func (c *Cache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

// getOrLoad never fails because of the cache itself: store and decode errors
// are logged and the loader is used instead. Loader errors are not cached,
// and neither is a value loaded across an invalidation of its key.
func getOrLoad[T any](ctx context.Context, c *Cache, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}

	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed", "key", key, "error", err)
	}
	if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		c.log.Warn("Discarding undecodable cache entry", "key", key)
	}

	gen := c.generation(key)
	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	raw, err = json.Marshal(value)
	if err != nil {
		return value, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		c.log.Debug("Skipping cache write for a key invalidated during load", "key", key)
		return value, nil
	}
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		c.log.Warn("Cache write failed", "key", key, "error", err)
	}
	return value, nil
}
