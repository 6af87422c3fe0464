// Package circuitbreaker wraps sony/gobreaker with typed results and
// defaults tuned for independent oracle/pool sources.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/r0zar/amm-price-engine/internal/apperror"
)

// Config holds circuit breaker settings.
type Config struct {
	Name string
	// MaxConsecutiveFailures is how many consecutive failures trip the breaker.
	MaxConsecutiveFailures uint32
	// OpenInterval is how long the breaker stays open before probing again.
	OpenInterval time.Duration
	// HalfOpenMaxRequests is how many probe requests are allowed half-open.
	HalfOpenMaxRequests uint32
	OnStateChange       func(name string, from, to gobreaker.State)
}

// DefaultConfig returns the per-source policy: trip after 3 consecutive
// failures, stay open for 60 seconds.
func DefaultConfig(name string) Config {
	return Config{
		Name:                   name,
		MaxConsecutiveFailures: 3,
		OpenInterval:           60 * time.Second,
		HalfOpenMaxRequests:    1,
	}
}

// CircuitBreaker is a typed wrapper around gobreaker.CircuitBreaker.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New creates a circuit breaker from config.
func New[T any](cfg Config) *CircuitBreaker[T] {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxRequests,
		Timeout:     cfg.OpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = cfg.OnStateChange
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker. When the breaker is open the call is
// skipped entirely and a CIRCUIT_OPEN error is returned.
func (c *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := c.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		var zero T
		return zero, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithContext(c.cb.Name()),
			apperror.WithCause(err))
	}
	return result, err
}

// State returns the current breaker state.
func (c *CircuitBreaker[T]) State() gobreaker.State {
	return c.cb.State()
}

// Name returns the breaker name.
func (c *CircuitBreaker[T]) Name() string {
	return c.cb.Name()
}
