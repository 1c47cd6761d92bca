package companies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheVersionKey = "companies:cache:version"
	cachePrefix     = "companies"

	// loadTimeout bounds a shared loader once it no longer follows a caller's context.
	loadTimeout = 10 * time.Second
)

// Cache is a versioned read-through JSON cache in Redis. Bump retires every
// key at once by moving the version forward. A nil *Cache, or one without a
// client, calls the loader directly.
//
// When a Bump fails the cache is marked stale: reads bypass Redis until a
// later version increment succeeds, so entries written before the failed
// bump are never served.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	stale  atomic.Bool
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current cache version, initialising when missing.
// A stale cache first retries the missed increment and reports an error
// while that still fails.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	if c.stale.Load() {
		ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
		if err != nil {
			return 0, fmt.Errorf("cache: stale, version bump retry: %w", err)
		}
		c.stale.Store(false)
		return ver, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SETNX so concurrent initialisers agree on one version.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{cachePrefix}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// FetchJSON loads a cached value into dest or populates it using the loader.
// Concurrent misses for the same key share one loader call. Loader errors
// are returned unchanged and nothing is cached.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil || c.stale.Load() {
		return loadInto(ctx, dest, loader)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		// Redis is unavailable: serve from the loader without caching.
		return loadInto(ctx, dest, loader)
	}

	// The flight outlives any single caller, so it must not inherit the
	// first caller's cancellation.
	resultCh := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		raw, err := loadRaw(loadCtx, loader)
		if err != nil {
			return nil, err
		}
		// A failed write only costs a later miss.
		_ = c.client.Set(loadCtx, key, raw, c.ttl).Err()
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-resultCh:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates every cached entry by incrementing the version. On
// failure the cache turns stale until a later increment succeeds.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	if err := c.client.Incr(ctx, cacheVersionKey).Err(); err != nil {
		c.stale.Store(true)
		return err
	}
	c.stale.Store(false)
	return nil
}

// loadInto calls loader and decodes its result into dest through JSON, so
// dest looks the same whether or not the value came from Redis.
func loadInto(ctx context.Context, dest any, loader func(context.Context) (any, error)) error {
	raw, err := loadRaw(ctx, loader)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func loadRaw(ctx context.Context, loader func(context.Context) (any, error)) ([]byte, error) {
	value, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(value)
}
