// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache provides the small caching layer used by the adapter
// fan-out, currently a TTL cache for dispatch cost estimates.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is a cache whose entries expire a fixed duration after they were
// stored. Concurrent fetches for the same key are collapsed into one.
type TTL[K comparable, V any] struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[K]entry[V]
	group   singleflight.Group
}

// NewTTL creates a TTL cache with the given entry lifetime.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:     ttl,
		entries: make(map[K]entry[V]),
	}
}

// Get returns the fresh cached value for key, or runs fetch to obtain
// and store one. Expired entries are treated as absent.
func (c *TTL[K, V]) Get(key K, fetch func(K) (V, error)) (V, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(e.expires) {
		return e.value, nil
	}

	v, err, _ := c.group.Do(keyString(key), func() (any, error) {
		value, err := fetch(key)
		if err != nil {
			return *new(V), err
		}
		c.mu.Lock()
		c.entries[key] = entry[V]{value: value, expires: time.Now().Add(c.ttl)}
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		return *new(V), err
	}
	return v.(V), nil
}

// Invalidate drops the entry for key, if any.
func (c *TTL[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, counting expired ones that
// have not been overwritten yet.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// keyString derives the singleflight key, honoring fmt.Stringer keys.
func keyString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
