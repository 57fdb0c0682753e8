// Package rediscache is an optional ToolCache backend for deployments
// running multiple orchestrator replicas that should share one TTL cache
// instead of each holding an independent in-memory copy (pkg/cache remains
// the default, in-process implementation spec §4.1/§8 is written against).
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache fronts tool results in Redis. Keys are used exactly as the caller
// passes them (plus prefix); this package does not derive them from tool
// names and arguments, and its method set differs from pkg/cache.Cache's.
type Cache struct {
	client *redis.Client
	prefix string
}

// New constructs a Cache backed by client. prefix namespaces keys when the
// Redis instance is shared with other subsystems.
func New(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Get returns the cached value for key, or (nil, false) on a miss or
// expiry. Redis enforces expiry natively; a present key is never stale.
func (c *Cache) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// Set stores value for key with the given TTL. A zero TTL means "no
// expiry", which callers must avoid for cacheable tool results; the caller
// is expected to resolve the TTL from the same profile table pkg/cache
// uses before calling Set.
func (c *Cache) Set(ctx context.Context, key string, value json.RawMessage, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, []byte(value), ttl).Err()
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
