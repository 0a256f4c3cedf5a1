// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package authz

import (
	"strings"
	"sync"
	"time"
)

// ttlCache caches decisions and key verifications.
type ttlCache[V any] struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]cacheItem[V]
	stopChan chan struct{}
	stopOnce sync.Once
}

type cacheItem[V any] struct {
	value     V
	expiresAt time.Time
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]cacheItem[V]),
		stopChan: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func decisionKey(subject, app, table, action string) string {
	return subject + "\x00" + app + "\x00" + table + "\x00" + action
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok || time.Now().After(item.expiresAt) {
		var zero V
		return zero, false
	}
	return item.value, true
}

func (c *ttlCache[V]) set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem[V]{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidatePrefix removes all entries whose key starts with prefix.
func (c *ttlCache[V]) invalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

func (c *ttlCache[V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem[V])
}

func (c *ttlCache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// cleanup periodically removes expired items.
func (c *ttlCache[V]) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// stop stops the cleanup goroutine. Safe to call more than once.
func (c *ttlCache[V]) stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
