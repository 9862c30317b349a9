package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
)

// lruCacheItem is the internal structure stored in the linked list.
type lruCacheItem[V any] struct {
	key   Key
	value V
}

// LRUCache is a generic, thread-safe, in-memory cache with a fixed size and a
// Least Recently Used (LRU) eviction policy.
//
// Without a backing cache it is a bounded store in its own right. With a
// backing cache it is a read-through front: misses are loaded from the backing
// store, while Set and Delete go to the backing store and invalidate the front
// copy, so the backing store stays the single source of truth.
type LRUCache[V any] struct {
	maxSize int
	backing Cache[V]

	mu    sync.Mutex
	ll    *list.List            // Used to track the order of items (recency).
	items map[Key]*list.Element // Used for fast key lookups.
	// writes counts mutations; a read-through load is only kept when no
	// mutation happened while it was in flight.
	writes uint64
}

// NewLRUCache creates a new size-limited LRU cache.
//   - maxSize: the maximum number of items held in memory. Must be > 0.
//   - backing: an optional Cache behind the in-memory front.
func NewLRUCache[V any](maxSize int, backing Cache[V]) (*LRUCache[V], error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("maxSize must be greater than 0")
	}
	return &LRUCache[V]{
		maxSize: maxSize,
		backing: backing,
		ll:      list.New(),
		items:   make(map[Key]*list.Element),
	}, nil
}

// Get returns the front copy when present, otherwise loads from the backing cache.
func (c *LRUCache[V]) Get(ctx context.Context, kind Kind, id snowflake.ID) (V, bool, error) {
	var zero V
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}

	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		value := elem.Value.(*lruCacheItem[V]).value
		c.mu.Unlock()
		return value, true, nil
	}
	startWrites := c.writes
	c.mu.Unlock()

	if c.backing == nil {
		return zero, false, nil
	}

	value, found, err := c.backing.Get(ctx, kind, id)
	if err != nil || !found {
		return zero, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writes == startWrites {
		c.insert(key, value)
	}
	return value, true, nil
}

// Set writes through to the backing cache, or stores in memory when there is none.
func (c *LRUCache[V]) Set(ctx context.Context, kind Kind, id snowflake.ID, value V) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	if c.backing != nil {
		if err := c.backing.Set(ctx, kind, id, value); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	if c.backing == nil {
		c.insert(key, value)
	} else {
		c.remove(key)
	}
	return nil
}

// Delete removes the entry from the backing cache and the front.
func (c *LRUCache[V]) Delete(ctx context.Context, kind Kind, id snowflake.ID) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if c.backing != nil {
		if err := c.backing.Delete(ctx, kind, id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes++
	c.remove(key)
	return nil
}

// Len returns the number of entries held in memory.
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close closes the backing cache, if any.
func (c *LRUCache[V]) Close() error {
	if c.backing != nil {
		return c.backing.Close()
	}
	return nil
}

// insert adds or refreshes key at the front and evicts past capacity.
// Must be called with mu held.
func (c *LRUCache[V]) insert(key Key, value V) {
	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruCacheItem[V]).value = value
		c.ll.MoveToFront(elem)
		return
	}
	c.items[key] = c.ll.PushFront(&lruCacheItem[V]{key: key, value: value})
	if c.ll.Len() > c.maxSize {
		c.evict()
	}
}

// remove drops key from the front. Must be called with mu held.
func (c *LRUCache[V]) remove(key Key) {
	if elem, ok := c.items[key]; ok {
		c.ll.Remove(elem)
		delete(c.items, key)
	}
}

// evict removes the least recently used item. Must be called with mu held.
func (c *LRUCache[V]) evict() {
	elementToRemove := c.ll.Back()
	if elementToRemove != nil {
		itemToRemove := c.ll.Remove(elementToRemove).(*lruCacheItem[V])
		delete(c.items, itemToRemove.key)
	}
}
