package app

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

type fakeSource struct {
	name     string
	priority int
	calls    atomic.Int32
	fetch    func(ctx context.Context) (float64, error)
}

func (s *fakeSource) Name() string  { return s.name }
func (s *fakeSource) Priority() int { return s.priority }
func (s *fakeSource) Fetch(ctx context.Context) (float64, error) {
	s.calls.Add(1)
	return s.fetch(ctx)
}

func fixedSource(name string, priority int, value float64) *fakeSource {
	return &fakeSource{
		name:     name,
		priority: priority,
		fetch:    func(context.Context) (float64, error) { return value, nil },
	}
}

func failingSource(name string, priority int) *fakeSource {
	return &fakeSource{
		name:     name,
		priority: priority,
		fetch:    func(context.Context) (float64, error) { return 0, errors.New("boom") },
	}
}

type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *fakeStore) put(t *testing.T, key string, price domain.AnchorPrice) {
	t.Helper()
	data, err := json.Marshal(price)
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.data[key] = data
	s.mu.Unlock()
}

func testConfig() AggregatorConfig {
	cfg := DefaultAggregatorConfig()
	cfg.RequestTimeout = time.Second
	return cfg
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "single", values: []float64{60000}, want: 60000},
		{
			// (1*60000 + 0.5*60600) / 1.5 = 60200
			name:   "two_sources_priority_weighted",
			values: []float64{60000, 60600},
			want:   60200,
		},
		{
			// (1*100 + 0.5*200 + 1/3*300) / (1 + 0.5 + 1/3)
			name:   "three_sources",
			values: []float64{100, 200, 300},
			want:   163.63636363636363,
		},
		{name: "empty", values: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weightedAverage(tt.values)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("weightedAverage(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestDispersionConfidence(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{name: "perfect_agreement", values: []float64{60000, 60000, 60000}, want: 1},
		{name: "single_source", values: []float64{42}, want: 1},
		{name: "wide_dispersion_clamps_to_zero", values: []float64{100, 200}, want: 0},
		{name: "empty", values: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dispersionConfidence(tt.values)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("dispersionConfidence(%v) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}

func TestDispersionConfidence_ModerateSpread(t *testing.T) {
	// avg = (1*60000 + 0.5*60600)/1.5 = 60200
	// deviations: 200/60200 and 400/60200, mean ~ 0.0049834
	// confidence ~ 1 - 10*0.0049834 = 0.95017
	got := dispersionConfidence([]float64{60000, 60600})
	if got < 0.94 || got > 0.96 {
		t.Errorf("confidence = %v, want ~0.95", got)
	}
}

func TestRefresh_PriorityWeighting(t *testing.T) {
	store := newFakeStore()
	// Register out of priority order; aggregation must sort by priority.
	sources := []QuoteSource{
		fixedSource("coingecko", 3, 61000),
		fixedSource("coinbase", 1, 60000),
		fixedSource("kraken", 2, 60600),
	}

	agg := NewAggregator(testConfig(), sources, store, logger.Nop())

	price, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	// (1*60000 + 0.5*60600 + 1/3*61000) / (11/6)
	want := (60000 + 0.5*60600 + 61000.0/3) / (1 + 0.5 + 1.0/3)
	if math.Abs(price.ValueUSD-want) > 1e-6 {
		t.Errorf("ValueUSD = %v, want %v", price.ValueUSD, want)
	}
	if price.Source != "coinbase+kraken+coingecko" {
		t.Errorf("Source = %q, want priority order", price.Source)
	}
	if price.Confidence <= 0 || price.Confidence > 1 {
		t.Errorf("Confidence = %v outside (0,1]", price.Confidence)
	}
}

func TestRefresh_PartialFailure(t *testing.T) {
	store := newFakeStore()
	sources := []QuoteSource{
		failingSource("coinbase", 1),
		fixedSource("kraken", 2, 60500),
	}

	agg := NewAggregator(testConfig(), sources, store, logger.Nop())

	price, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh should tolerate one failing source: %v", err)
	}
	if price.ValueUSD != 60500 {
		t.Errorf("ValueUSD = %v, want 60500", price.ValueUSD)
	}
	if price.Source != "kraken" {
		t.Errorf("Source = %q, want kraken", price.Source)
	}
	if price.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1 for a single surviving source", price.Confidence)
	}
}

func TestRefresh_AllFail(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(testConfig(), []QuoteSource{failingSource("coinbase", 1)}, store, logger.Nop())

	_, err := agg.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected error when every source fails")
	}
	if apperror.CodeOf(err) != apperror.CodeOracleSourceError {
		t.Errorf("code = %v, want CodeOracleSourceError", apperror.CodeOf(err))
	}

	health := agg.Health()
	if health.ConsecutiveFailures != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", health.ConsecutiveFailures)
	}
	if health.LastError == "" {
		t.Error("LastError should be recorded")
	}
}

func TestRefresh_RejectsNonPositiveQuote(t *testing.T) {
	store := newFakeStore()
	sources := []QuoteSource{
		fixedSource("coinbase", 1, 0),
		fixedSource("kraken", 2, 60500),
	}

	agg := NewAggregator(testConfig(), sources, store, logger.Nop())

	price, err := agg.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if price.ValueUSD != 60500 {
		t.Errorf("ValueUSD = %v, want 60500 (zero quote discarded)", price.ValueUSD)
	}
}

func TestBreaker_SkipsSourceAfterConsecutiveFailures(t *testing.T) {
	store := newFakeStore()
	src := failingSource("coinbase", 1)
	agg := NewAggregator(testConfig(), []QuoteSource{src}, store, logger.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := agg.Refresh(ctx); err == nil {
			t.Fatalf("refresh %d should fail", i)
		}
	}
	if got := src.calls.Load(); got != 3 {
		t.Fatalf("source called %d times, want 3", got)
	}

	// Breaker is now open: the source must be skipped without being called.
	if _, err := agg.Refresh(ctx); err == nil {
		t.Fatal("refresh with open breaker should fail")
	}
	if got := src.calls.Load(); got != 3 {
		t.Errorf("source called %d times after breaker opened, want still 3", got)
	}

	statuses := agg.SourceStatuses()
	if len(statuses) != 1 || statuses[0].BreakerState != "open" {
		t.Errorf("statuses = %+v, want open breaker", statuses)
	}
}

func TestAnchorPrice_ServesFreshCache(t *testing.T) {
	store := newFakeStore()
	src := fixedSource("coinbase", 1, 61000)
	agg := NewAggregator(testConfig(), []QuoteSource{src}, store, logger.Nop())

	cached := domain.AnchorPrice{
		ValueUSD:   60000,
		ObservedAt: time.Now().UTC().Add(-time.Minute),
		Source:     "coinbase",
		Confidence: 1,
	}
	store.put(t, keyFresh, cached)

	price, err := agg.AnchorPrice(context.Background())
	if err != nil {
		t.Fatalf("AnchorPrice failed: %v", err)
	}
	if price.ValueUSD != 60000 {
		t.Errorf("ValueUSD = %v, want cached 60000", price.ValueUSD)
	}
	if src.calls.Load() != 0 {
		t.Errorf("fresh cache hit must not call sources, got %d calls", src.calls.Load())
	}
}

func TestAnchorPrice_StaleWhileRevalidate(t *testing.T) {
	store := newFakeStore()
	src := fixedSource("coinbase", 1, 61000)
	agg := NewAggregator(testConfig(), []QuoteSource{src}, store, logger.Nop())

	stale := domain.AnchorPrice{
		ValueUSD:   60000,
		ObservedAt: time.Now().UTC().Add(-(5*time.Minute + 10*time.Second)),
		Source:     "coinbase",
		Confidence: 1,
	}
	store.put(t, keyFresh, stale)

	price, err := agg.AnchorPrice(context.Background())
	if err != nil {
		t.Fatalf("AnchorPrice failed: %v", err)
	}
	if price.ValueUSD != 60000 {
		t.Errorf("stale value should be served immediately, got %v", price.ValueUSD)
	}

	// The background refresh rewrites the fresh slot with the live quote.
	deadline := time.After(2 * time.Second)
	for {
		data, ok, _ := store.Get(context.Background(), keyFresh)
		if ok {
			var updated domain.AnchorPrice
			if json.Unmarshal(data, &updated) == nil && updated.ValueUSD == 61000 {
				return
			}
		}
		select {
		case <-deadline:
			t.Fatal("background refresh never updated the fresh slot")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestAnchorPrice_ExpiredTriggersSyncRefresh(t *testing.T) {
	store := newFakeStore()
	src := fixedSource("coinbase", 1, 61000)
	agg := NewAggregator(testConfig(), []QuoteSource{src}, store, logger.Nop())

	expired := domain.AnchorPrice{
		ValueUSD:   60000,
		ObservedAt: time.Now().UTC().Add(-10 * time.Minute),
		Source:     "coinbase",
		Confidence: 1,
	}
	store.put(t, keyFresh, expired)

	price, err := agg.AnchorPrice(context.Background())
	if err != nil {
		t.Fatalf("AnchorPrice failed: %v", err)
	}
	if price.ValueUSD != 61000 {
		t.Errorf("ValueUSD = %v, want live 61000", price.ValueUSD)
	}
	if src.calls.Load() != 1 {
		t.Errorf("expected one synchronous fetch, got %d", src.calls.Load())
	}
}

func TestAnchorPrice_BackupFallback(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(testConfig(), []QuoteSource{failingSource("coinbase", 1)}, store, logger.Nop())

	backup := domain.AnchorPrice{
		ValueUSD:   59000,
		ObservedAt: time.Now().UTC().Add(-2 * time.Hour),
		Source:     "coinbase",
		Confidence: 0.9,
	}
	store.put(t, keyBackup, backup)

	price, err := agg.AnchorPrice(context.Background())
	if err != nil {
		t.Fatalf("backup slot should rescue the call: %v", err)
	}
	if price.ValueUSD != 59000 {
		t.Errorf("ValueUSD = %v, want backup 59000", price.ValueUSD)
	}
}

func TestAnchorPrice_Unavailable(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(testConfig(), []QuoteSource{failingSource("coinbase", 1)}, store, logger.Nop())

	_, err := agg.AnchorPrice(context.Background())
	if err == nil {
		t.Fatal("expected OracleUnavailable with no cache at all")
	}
	if apperror.CodeOf(err) != apperror.CodeOracleUnavailable {
		t.Errorf("code = %v, want CodeOracleUnavailable", apperror.CodeOf(err))
	}
}

func TestRefresh_WritesBothSlotsAndHealth(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(testConfig(), []QuoteSource{fixedSource("coinbase", 1, 60000)}, store, logger.Nop())

	if _, err := agg.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	for _, key := range []string{keyFresh, keyBackup, keyHealth} {
		if _, ok, _ := store.Get(context.Background(), key); !ok {
			t.Errorf("key %s not written", key)
		}
	}

	health := agg.Health()
	if health.ConsecutiveFailures != 0 || health.LastSuccessfulUpdate.IsZero() {
		t.Errorf("health = %+v, want success recorded", health)
	}
}
