// Package cache provides a Redis-backed cache of encoded percolator
// snapshots, so a read replica can bootstrap its in-memory Percolator from
// Redis instead of always falling back to the slower S3-backed store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a requested snapshot is not cached.
var ErrNotFound = errors.New("cache: snapshot not cached")

const latestKey = "percolate:snapshot:latest"

// Cache wraps a go-redis client.
type Cache struct {
	client *redis.Client
}

// New creates a Cache from a redis:// URL, e.g. "redis://localhost:6379"
// or "redis://:password@host:6379/0".
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping: %w", err)
	}
	return &Cache{client: client}, nil
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping verifies the Redis connection is alive, for use as a health.PingFunc.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// snapshotKey builds the Redis key for a single snapshot's encoded bytes.
func (c *Cache) snapshotKey(id string) string {
	return "percolate:snapshot:" + id
}

// Put stores the encoded snapshot bytes under id with the given TTL, and
// updates the "latest" pointer so bootstrap code can find it without
// knowing the id in advance.
func (c *Cache) Put(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.snapshotKey(id), data, ttl)
	pipe.Set(ctx, latestKey, id, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache: put snapshot %q: %w", id, err)
	}
	return nil
}

// Get retrieves the encoded snapshot bytes for id, or ErrNotFound if absent.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.snapshotKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: get snapshot %q: %w", id, err)
	}
	return data, nil
}

// Latest returns the encoded bytes of the most recently Put snapshot, or
// ErrNotFound if nothing has been cached yet (or it expired).
func (c *Cache) Latest(ctx context.Context) ([]byte, error) {
	id, err := c.client.Get(ctx, latestKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cache: get latest pointer: %w", err)
	}
	return c.Get(ctx, id)
}

// Invalidate removes a cached snapshot.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %q: %w", id, err)
	}
	return nil
}
