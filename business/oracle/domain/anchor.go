// Package domain contains the core domain types for the oracle context.
package domain

import (
	"time"
)

// AnchorPrice is the aggregated USD price of the anchor token. Confidence
// reflects cross-source agreement: 1.0 means all sources quoted the same
// value, 0 means dispersion of 10% or more around the weighted average.
type AnchorPrice struct {
	ValueUSD   float64   `json:"valueUsd"`
	ObservedAt time.Time `json:"observedAt"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
}

// Age returns how long ago the price was observed.
func (p AnchorPrice) Age() time.Duration {
	return time.Since(p.ObservedAt)
}

// IsZero reports whether the price carries no observation.
func (p AnchorPrice) IsZero() bool {
	return p.ObservedAt.IsZero()
}

// Health is the aggregator-level health record, updated after every
// aggregation attempt. A successful attempt resets ConsecutiveFailures.
type Health struct {
	LastSuccessfulUpdate time.Time `json:"lastSuccessfulUpdate"`
	ConsecutiveFailures  int       `json:"consecutiveFailures"`
	LastError            string    `json:"lastError,omitempty"`
}

// SourceStatus describes one quote source for display and diagnostics.
type SourceStatus struct {
	Name         string    `json:"name"`
	Priority     int       `json:"priority"`
	BreakerState string    `json:"breakerState"`
	LastValue    float64   `json:"lastValue,omitempty"`
	LastSuccess  time.Time `json:"lastSuccess,omitempty"`
	LastError    string    `json:"lastError,omitempty"`
}
