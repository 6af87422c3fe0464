// Package app contains application services and port definitions for the oracle context.
package app

import (
	"context"
	"time"
)

// QuoteSource is one independently-configured anchor-price source. Fetch
// returns the anchor token's USD spot price.
type QuoteSource interface {
	// Name returns the source label (e.g., "coinbase").
	Name() string

	// Priority returns the configured rank; lower means more trusted.
	Priority() int

	// Fetch retrieves the anchor USD price from the source.
	Fetch(ctx context.Context) (float64, error)
}

// CacheStore persists the anchor-price cache slots and the health record.
type CacheStore interface {
	// Get returns the stored bytes for key, or ok=false when absent or expired.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
