// Package cachestore provides cache-store implementations for the oracle context.
package cachestore

import (
	"context"
	"time"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/cache"
)

// Ensure Memory implements CacheStore.
var _ app.CacheStore = (*Memory)(nil)

// Memory is an in-process cache store. Entries do not survive restarts.
type Memory struct {
	cache *cache.Cache[string, []byte]
}

// NewMemory creates an in-memory cache store.
func NewMemory() *Memory {
	return &Memory{cache: cache.New[string, []byte](0)}
}

// Get returns the stored bytes for key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := m.cache.Get(key)
	return value, ok, nil
}

// Set stores value under key. A non-positive ttl means no expiry.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.cache.SetWithTTL(key, value, ttl)
	return nil
}

// Close releases the janitor goroutine.
func (m *Memory) Close() {
	m.cache.Close()
}
