package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache layers JSON encoding and key prefixing over the raw client
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) fullKey(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value into dest, reporting whether it was a hit.
// Transport errors read as misses: the caller falls through to the store.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, hit, err := c.client.Get(ctx, c.fullKey(key))
	if err != nil || !hit {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	return c.client.Set(ctx, c.fullKey(key), data, ttl)
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.fullKey(key))
}
