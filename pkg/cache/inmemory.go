package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
)

// InMemoryCache is a generic, thread-safe, in-memory Cache implementation.
type InMemoryCache[V any] struct {
	mu   sync.RWMutex
	data map[Key]V
}

// NewInMemoryCache creates a new in-memory cache.
func NewInMemoryCache[V any]() *InMemoryCache[V] {
	return &InMemoryCache[V]{
		data: make(map[Key]V),
	}
}

// Get retrieves an item from the cache.
func (c *InMemoryCache[V]) Get(ctx context.Context, kind Kind, id snowflake.ID) (V, bool, error) {
	var zero V
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.data[key]
	return value, ok, nil
}

// Set adds or replaces an item in the cache.
func (c *InMemoryCache[V]) Set(ctx context.Context, kind Kind, id snowflake.ID, value V) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

// Delete removes an item from the cache.
func (c *InMemoryCache[V]) Delete(ctx context.Context, kind Kind, id snowflake.ID) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Len returns the number of cached entries across all kinds.
func (c *InMemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Close is a no-op for the in-memory cache.
func (c *InMemoryCache[V]) Close() error {
	return nil
}
