package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/circuitbreaker"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

const tracerName = "business/oracle"

// Cache-store keys used by the aggregator.
const (
	keyFresh  = "oracle:anchor:fresh"
	keyBackup = "oracle:anchor:backup"
	keyHealth = "oracle:anchor:health"
)

// AggregatorConfig holds aggregation settings.
type AggregatorConfig struct {
	RequestTimeout time.Duration // per-source fetch timeout
	FreshWindow    time.Duration // cached value younger than this is returned as-is
	StaleWindow    time.Duration // between FreshWindow and this: serve stale + background refresh
}

// DefaultAggregatorConfig returns the standard windows: 10s per-source
// timeout, 5 minute fresh window, 5:30 stale window.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		RequestTimeout: 10 * time.Second,
		FreshWindow:    5 * time.Minute,
		StaleWindow:    5*time.Minute + 30*time.Second,
	}
}

// sourceState tracks one source's breaker and last observation.
type sourceState struct {
	breaker *circuitbreaker.CircuitBreaker[float64]

	mu          sync.RWMutex
	lastValue   float64
	lastSuccess time.Time
	lastError   string
}

// Aggregator produces a single USD price for the anchor token from N
// independently-configured quote sources. Sources are queried concurrently;
// each call goes through that source's circuit breaker so a flapping source
// is skipped without being called while its breaker is open.
type Aggregator struct {
	config  AggregatorConfig
	sources []QuoteSource // sorted by priority, most trusted first
	states  map[string]*sourceState
	store   CacheStore
	logger  logger.LoggerInterface

	healthMu sync.RWMutex
	health   domain.Health

	refreshing atomic.Bool

	tracer         trace.Tracer
	refreshCounter metric.Int64Counter
}

// NewAggregator creates an Aggregator over the given sources.
func NewAggregator(cfg AggregatorConfig, sources []QuoteSource, store CacheStore, log logger.LoggerInterface) *Aggregator {
	sorted := make([]QuoteSource, len(sources))
	copy(sorted, sources)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	states := make(map[string]*sourceState, len(sorted))
	for _, src := range sorted {
		states[src.Name()] = &sourceState{
			breaker: circuitbreaker.New[float64](circuitbreaker.DefaultConfig("oracle-" + src.Name())),
		}
	}

	meter := otel.Meter(tracerName)
	refreshCounter, err := meter.Int64Counter("oracle_refresh_total",
		metric.WithDescription("Anchor price refresh attempts"))
	if err != nil {
		log.Warn(context.Background(), "failed to create oracle refresh counter", "error", err)
	}

	return &Aggregator{
		config:         cfg,
		sources:        sorted,
		states:         states,
		store:          store,
		logger:         log,
		tracer:         otel.Tracer(tracerName),
		refreshCounter: refreshCounter,
	}
}

// AnchorPrice returns the anchor token's USD price, honoring the caching
// contract: fresh values are served as-is, values inside the stale window are
// served while a background refresh runs, and older values force a
// synchronous refresh with the backup slot as last resort.
func (a *Aggregator) AnchorPrice(ctx context.Context) (domain.AnchorPrice, error) {
	ctx, span := a.tracer.Start(ctx, "oracle.anchor_price")
	defer span.End()

	if cached, ok := a.loadSlot(ctx, keyFresh); ok {
		age := cached.Age()
		if age < a.config.FreshWindow {
			span.SetAttributes(attribute.String("serve", "fresh"))
			return cached, nil
		}
		if age < a.config.StaleWindow {
			span.SetAttributes(attribute.String("serve", "stale_while_revalidate"))
			a.refreshInBackground()
			return cached, nil
		}
	}

	price, err := a.Refresh(ctx)
	if err == nil {
		span.SetAttributes(attribute.String("serve", "refreshed"))
		return price, nil
	}

	if backup, ok := a.loadSlot(ctx, keyBackup); ok {
		a.logger.Warn(ctx, "anchor refresh failed, serving backup price",
			"error", err,
			"backupAge", backup.Age().String())
		span.SetAttributes(attribute.String("serve", "backup"))
		return backup, nil
	}

	span.SetAttributes(attribute.String("serve", "unavailable"))
	return domain.AnchorPrice{}, apperror.New(apperror.CodeOracleUnavailable,
		apperror.WithCause(err))
}

// Refresh queries all sources concurrently and aggregates the successful
// results with a priority-weighted average. The fresh and backup cache slots
// and the health record are updated on the way out.
func (a *Aggregator) Refresh(ctx context.Context) (domain.AnchorPrice, error) {
	ctx, span := a.tracer.Start(ctx, "oracle.refresh")
	defer span.End()

	type fetchResult struct {
		name  string
		value float64
		err   error
	}

	results := make([]fetchResult, len(a.sources))
	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src QuoteSource) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
			defer cancel()

			state := a.states[src.Name()]
			value, err := state.breaker.Execute(func() (float64, error) {
				v, fetchErr := src.Fetch(callCtx)
				if fetchErr == nil && (v <= 0 || math.IsNaN(v) || math.IsInf(v, 0)) {
					fetchErr = apperror.New(apperror.CodeOracleParseError,
						apperror.WithContext(fmt.Sprintf("%s returned non-positive price %v", src.Name(), v)))
				}
				return v, fetchErr
			})

			state.mu.Lock()
			if err != nil {
				state.lastError = err.Error()
			} else {
				state.lastValue = value
				state.lastSuccess = time.Now().UTC()
				state.lastError = ""
			}
			state.mu.Unlock()

			if err != nil {
				a.logger.Warn(ctx, "oracle source failed", "source", src.Name(), "error", err)
			} else {
				a.logger.Debug(ctx, "oracle source quote", "source", src.Name(), "valueUsd", value)
			}
			results[i] = fetchResult{name: src.Name(), value: value, err: err}
		}(i, src)
	}
	wg.Wait()

	// Successful results keep priority order: a.sources is already sorted.
	var (
		values []float64
		names  []string
		errs   []error
	)
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
			continue
		}
		values = append(values, r.value)
		names = append(names, r.name)
	}

	if a.refreshCounter != nil {
		a.refreshCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", len(values) > 0),
			attribute.Int("sources_ok", len(values)),
		))
	}

	if len(values) == 0 {
		err := apperror.New(apperror.CodeOracleSourceError,
			apperror.WithContext(fmt.Sprintf("all %d sources failed", len(a.sources))),
			apperror.WithCause(errors.Join(errs...)))
		a.recordAttempt(ctx, err)
		return domain.AnchorPrice{}, err
	}

	price := domain.AnchorPrice{
		ValueUSD:   weightedAverage(values),
		ObservedAt: time.Now().UTC(),
		Source:     strings.Join(names, "+"),
		Confidence: dispersionConfidence(values),
	}

	a.storeSlot(ctx, keyFresh, price, a.config.StaleWindow)
	a.storeSlot(ctx, keyBackup, price, 0) // last known good, no expiry
	a.recordAttempt(ctx, nil)

	a.logger.Info(ctx, "anchor price refreshed",
		"valueUsd", price.ValueUSD,
		"confidence", price.Confidence,
		"sources", price.Source)

	span.SetAttributes(
		attribute.Float64("valueUsd", price.ValueUSD),
		attribute.Float64("confidence", price.Confidence),
	)

	return price, nil
}

// Health returns the aggregator health record.
func (a *Aggregator) Health() domain.Health {
	a.healthMu.RLock()
	defer a.healthMu.RUnlock()
	return a.health
}

// SourceStatuses returns per-source diagnostics in priority order.
func (a *Aggregator) SourceStatuses() []domain.SourceStatus {
	statuses := make([]domain.SourceStatus, 0, len(a.sources))
	for _, src := range a.sources {
		state := a.states[src.Name()]
		state.mu.RLock()
		statuses = append(statuses, domain.SourceStatus{
			Name:         src.Name(),
			Priority:     src.Priority(),
			BreakerState: state.breaker.State().String(),
			LastValue:    state.lastValue,
			LastSuccess:  state.lastSuccess,
			LastError:    state.lastError,
		})
		state.mu.RUnlock()
	}
	return statuses
}

func (a *Aggregator) refreshInBackground() {
	if !a.refreshing.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer a.refreshing.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), a.config.RequestTimeout+5*time.Second)
		defer cancel()

		if _, err := a.Refresh(ctx); err != nil {
			a.logger.Warn(ctx, "background anchor refresh failed", "error", err)
		}
	}()
}

func (a *Aggregator) recordAttempt(ctx context.Context, attemptErr error) {
	a.healthMu.Lock()
	if attemptErr != nil {
		a.health.ConsecutiveFailures++
		a.health.LastError = attemptErr.Error()
	} else {
		a.health.LastSuccessfulUpdate = time.Now().UTC()
		a.health.ConsecutiveFailures = 0
		a.health.LastError = ""
	}
	record := a.health
	a.healthMu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, keyHealth, data, 0); err != nil {
		a.logger.Warn(ctx, "failed to persist oracle health record", "error", err)
	}
}

func (a *Aggregator) loadSlot(ctx context.Context, key string) (domain.AnchorPrice, bool) {
	data, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.logger.Warn(ctx, "cache store read failed", "key", key, "error", err)
		return domain.AnchorPrice{}, false
	}
	if !ok {
		return domain.AnchorPrice{}, false
	}

	var price domain.AnchorPrice
	if err := json.Unmarshal(data, &price); err != nil {
		a.logger.Warn(ctx, "corrupt anchor cache entry", "key", key, "error", err)
		return domain.AnchorPrice{}, false
	}
	if price.IsZero() {
		return domain.AnchorPrice{}, false
	}
	return price, true
}

func (a *Aggregator) storeSlot(ctx context.Context, key string, price domain.AnchorPrice, ttl time.Duration) {
	data, err := json.Marshal(price)
	if err != nil {
		return
	}
	if err := a.store.Set(ctx, key, data, ttl); err != nil {
		a.logger.Warn(ctx, "cache store write failed", "key", key, "error", err)
	}
}

// weightedAverage combines values already sorted by source priority with
// weight 1/(i+1) for the i-th value.
func weightedAverage(values []float64) float64 {
	var sum, weightSum float64
	for i, v := range values {
		w := 1.0 / float64(i+1)
		sum += w * v
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return sum / weightSum
}

// dispersionConfidence maps mean relative deviation around the weighted
// average to [0,1]: clamp(1 - 10*meanRelativeDeviation, 0, 1).
func dispersionConfidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	avg := weightedAverage(values)
	if avg == 0 {
		return 0
	}

	var devSum float64
	for _, v := range values {
		devSum += math.Abs(v-avg) / avg
	}
	meanDev := devSum / float64(len(values))

	confidence := 1 - 10*meanDev
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
