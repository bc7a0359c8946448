// Package cache provides a small TTL cache for derived read models such
// as period report summaries.
package cache

import (
	"sync"
	"time"
)

type item[T any] struct {
	data      T
	expiresAt time.Time
}

// TTLCache is a mutex-guarded map with per-item expiry. It is sized for
// workloads with a handful of live keys; expired entries are dropped on
// access and by CleanExpired.
type TTLCache[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]item[T]
}

func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	return &TTLCache[T]{
		ttl:   ttl,
		items: make(map[string]item[T]),
	}
}

// Get retrieves a value, dropping it if expired.
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	it, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if time.Now().After(it.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return it.data, true
}

// Set stores a value with the cache's TTL.
func (c *TTLCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = item[T]{data: data, expiresAt: time.Now().Add(c.ttl)}
}

// Delete removes one key.
func (c *TTLCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Purge removes every entry.
func (c *TTLCache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]item[T])
}

// CleanExpired removes expired entries and returns how many were dropped.
func (c *TTLCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Size returns the current number of items, expired ones included.
func (c *TTLCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
