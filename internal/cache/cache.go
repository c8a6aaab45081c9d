// Copyright (c) 2025 vflorio
// SPDX-License-Identifier: MIT

// Package cache stores fetched manifest documents as raw bytes, keyed by
// normalized URL. A cache hit lets a reload or a second session skip the
// origin round trip while the TTL holds.
package cache

import (
	"sync"
	"time"
)

// Cache is a byte-payload cache with per-entry TTL.
type Cache interface {
	// Get returns the payload for key, or false when absent or expired.
	Get(key string) ([]byte, bool)
	// Set stores payload under key for ttl.
	Set(key string, payload []byte, ttl time.Duration)
	// Delete removes key.
	Delete(key string)
	// Clear removes every entry.
	Clear()
	// Stats returns cache counters.
	Stats() Stats
	// Close releases background resources held by the backend.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// memoryCache is the in-process implementation.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   Stats
	janitor *janitor
}

// NewMemory creates an in-memory cache. A positive cleanupInterval starts a
// janitor goroutine that evicts expired entries; Close stops it.
func NewMemory(cleanupInterval time.Duration) Cache {
	c := &memoryCache{entries: make(map[string]*entry)}
	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}
	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found || e.expired() {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++

	out := make([]byte, len(e.payload))
	copy(out, e.payload)
	return out, true
}

func (c *memoryCache) Set(key string, payload []byte, ttl time.Duration) {
	stored := make([]byte, len(payload))
	copy(stored, payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry{
		payload:   stored,
		expiresAt: time.Now().Add(ttl),
	}
	c.stats.Sets++
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.CurrentSize = len(c.entries)
	return stats
}

// deleteExpired removes expired entries and returns the count.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.expired() {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.Evictions += int64(count)
	return count
}

// Close terminates the janitor goroutine, if one is running.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
	return nil
}

type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noOpCache disables caching without branching at call sites.
type noOpCache struct{}

// NewNoOp returns a cache that never stores anything.
func NewNoOp() Cache {
	return &noOpCache{}
}

func (c *noOpCache) Get(key string) ([]byte, bool)                   { return nil, false }
func (c *noOpCache) Set(key string, payload []byte, t time.Duration) {}
func (c *noOpCache) Delete(key string)                               {}
func (c *noOpCache) Clear()                                          {}
func (c *noOpCache) Stats() Stats                                    { return Stats{} }
func (c *noOpCache) Close() error                                    { return nil }
