// Package collcache caches data-service collection descriptors (name to
// stable id) so the upload relay does not hit the metadata endpoint on every
// file. Redis-backed when configured, with a process-local fallback.
package collcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a resolved id is trusted. Collection ids are
// stable, but a deleted-and-recreated collection gets a new one.
const DefaultTTL = time.Hour

type memoryEntry struct {
	id        string
	expiresAt time.Time
}

type Cache struct {
	client *redis.Client // nil means memory-only
	prefix string
	ttl    time.Duration

	mu  sync.Mutex
	mem map[string]memoryEntry
}

// New creates a cache. An empty redisURL selects the in-process backend.
func New(redisURL string) (*Cache, error) {
	cache := &Cache{
		prefix: "collection:",
		ttl:    DefaultTTL,
		mem:    map[string]memoryEntry{},
	}
	if redisURL == "" {
		return cache, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	cache.client = client
	return cache, nil
}

// NewWithClient creates a Redis-backed cache from an existing client.
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "collection:",
		ttl:    DefaultTTL,
		mem:    map[string]memoryEntry{},
	}
}

func (c *Cache) key(name string) string {
	return c.prefix + name
}

// Get returns the cached collection id for a name. Redis errors degrade to a
// cache miss; the caller re-resolves against the data service either way.
func (c *Cache) Get(ctx context.Context, name string) (string, bool) {
	if c.client != nil {
		id, err := c.client.Get(ctx, c.key(name)).Result()
		if err != nil {
			return "", false
		}
		return id, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.mem[name]
	if !ok || time.Now().After(entry.expiresAt) {
		delete(c.mem, name)
		return "", false
	}
	return entry.id, true
}

// Put stores a resolved collection id. Best-effort: a Redis write failure
// only costs a future lookup.
func (c *Cache) Put(ctx context.Context, name, id string) {
	if c.client != nil {
		_ = c.client.Set(ctx, c.key(name), id, c.ttl).Err()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem[name] = memoryEntry{id: id, expiresAt: time.Now().Add(c.ttl)}
}

// Ping checks the Redis backend when one is configured.
func (c *Cache) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Close releases the Redis connection when one is configured.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
