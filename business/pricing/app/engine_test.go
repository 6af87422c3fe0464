package app

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
)

type fakeProvider struct {
	mu      sync.Mutex
	records []domain.PoolRecord
	err     error
	calls   atomic.Int32
}

func (p *fakeProvider) ListPools(_ context.Context, _ string) ([]domain.PoolRecord, error) {
	p.calls.Add(1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.records, nil
}

func (p *fakeProvider) set(records []domain.PoolRecord, err error) {
	p.mu.Lock()
	p.records = records
	p.err = err
	p.mu.Unlock()
}

type fakeOracle struct {
	mu    sync.Mutex
	price oracledomain.AnchorPrice
	err   error
}

func (o *fakeOracle) AnchorPrice(context.Context) (oracledomain.AnchorPrice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.price, o.err
}

func (o *fakeOracle) Refresh(ctx context.Context) (oracledomain.AnchorPrice, error) {
	return o.AnchorPrice(ctx)
}

func endToEndRecords() []domain.PoolRecord {
	return []domain.PoolRecord{
		pool(1, leg(0xA0, "ANCHOR", 6), leg(0xB0, "STABLE", 6), e6(10_000), e6(10_000)),
		pool(2, leg(0xB0, "STABLE", 6), leg(0xC0, "X", 6), e6(5_000), e6(1_000)),
	}
}

func newTestEngine(provider PoolProvider, oracle AnchorOracle) (*Engine, *GraphCache) {
	log := logger.Nop()
	discovery := NewDiscovery(DefaultDiscoveryConfig(), testAnchor.ID(), testStables, log)
	cache := NewGraphCache(GraphCacheConfig{Protocol: "testnet", MaxAge: 5 * time.Minute},
		provider, oracle, discovery, testAnchor, log)
	engine := NewEngine(cache, oracle, NewPathFinder(DefaultPathFinderConfig()), testAnchor.ID(), log)
	return engine, cache
}

func TestEngine_EndToEnd(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	ctx := context.Background()

	tests := []struct {
		name           string
		tokenID        byte
		wantPrice      float64
		wantConfidence float64
	}{
		{name: "anchor_from_oracle", tokenID: 0xA0, wantPrice: 60_000, wantConfidence: 1.0},
		{name: "stable_fixed", tokenID: 0xB0, wantPrice: 1.00, wantConfidence: 0.95},
		{name: "x_derived", tokenID: 0xC0, wantPrice: 5.00, wantConfidence: 0.76},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			price, ok, err := engine.GetPrice(ctx, addr(tt.tokenID))
			if err != nil {
				t.Fatalf("GetPrice failed: %v", err)
			}
			if !ok {
				t.Fatal("token not priced")
			}
			if math.Abs(price.ValueUsd-tt.wantPrice) > 1e-9 {
				t.Errorf("price = %v, want %v", price.ValueUsd, tt.wantPrice)
			}
			if math.Abs(price.Confidence-tt.wantConfidence) > 1e-9 {
				t.Errorf("confidence = %v, want %v", price.Confidence, tt.wantConfidence)
			}
		})
	}

	if _, ok, err := engine.GetPrice(ctx, addr(0xEE)); err != nil || ok {
		t.Errorf("unknown token: ok=%v err=%v, want absent without error", ok, err)
	}
}

func TestEngine_GetStats(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	stats, err := engine.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}

	if stats.TokenCount != 3 {
		t.Errorf("TokenCount = %d, want 3", stats.TokenCount)
	}
	if stats.PoolCount != 2 {
		t.Errorf("PoolCount = %d, want 2", stats.PoolCount)
	}
	if stats.AnchorPairCount != 1 {
		t.Errorf("AnchorPairCount = %d, want 1", stats.AnchorPairCount)
	}
	if stats.PricedTokenCount != 3 {
		t.Errorf("PricedTokenCount = %d, want 3", stats.PricedTokenCount)
	}
	if stats.GraphAgeMs < 0 {
		t.Errorf("GraphAgeMs = %d, want >= 0", stats.GraphAgeMs)
	}
}

func TestEngine_OracleUnavailableDegradesToUnpriced(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{err: apperror.New(apperror.CodeOracleUnavailable)}
	engine, _ := newTestEngine(provider, oracle)

	ctx := context.Background()

	// Every token reads as absent, no fault escapes.
	for _, id := range []byte{0xA0, 0xB0, 0xC0} {
		if _, ok, err := engine.GetPrice(ctx, addr(id)); err != nil || ok {
			t.Errorf("token %#x: ok=%v err=%v, want unpriced without error", id, ok, err)
		}
	}

	stats, err := engine.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.PoolCount != 2 || stats.PricedTokenCount != 0 {
		t.Errorf("stats = %+v, want graph built but unpriced", stats)
	}
}

func TestEngine_PoolFetchFailureWithoutSnapshot(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(nil, errors.New("connection refused"))
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	_, _, err := engine.GetPrice(context.Background(), addr(0xA0))
	if err == nil {
		t.Fatal("expected error with no snapshot to fall back on")
	}
	if apperror.CodeOf(err) != apperror.CodePoolFetchFailed {
		t.Errorf("code = %v, want CodePoolFetchFailed", apperror.CodeOf(err))
	}
}

func TestEngine_ServesPreviousGenerationOnRebuildFailure(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, cache := newTestEngine(provider, oracle)

	ctx := context.Background()
	if _, _, err := engine.GetPrice(ctx, addr(0xC0)); err != nil {
		t.Fatalf("initial build failed: %v", err)
	}

	// Provider starts failing; a forced staleness must still serve the old
	// generation.
	provider.set(nil, errors.New("connection refused"))
	cache.MarkStale()

	price, ok, err := engine.GetPrice(ctx, addr(0xC0))
	if err != nil || !ok {
		t.Fatalf("stale serve failed: ok=%v err=%v", ok, err)
	}
	if price.ValueUsd != 5.00 {
		t.Errorf("price = %v, want previous generation's 5.00", price.ValueUsd)
	}
}

func TestEngine_ForceRebuildPicksUpNewPools(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	ctx := context.Background()
	if _, err := engine.GetStats(ctx); err != nil {
		t.Fatalf("initial build failed: %v", err)
	}

	// New pool shows up; without force the fresh snapshot would be reused.
	records := append(endToEndRecords(),
		pool(3, leg(0xB0, "STABLE", 6), leg(0xD0, "Y", 6), e6(100), e6(100)))
	provider.set(records, nil)

	if err := engine.ForceRebuild(ctx); err != nil {
		t.Fatalf("ForceRebuild failed: %v", err)
	}

	if _, ok, _ := engine.GetPrice(ctx, addr(0xD0)); !ok {
		t.Error("new token not priced after forced rebuild")
	}
}

func TestGraphCache_CoalescesConcurrentRebuilds(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	_, cache := newTestEngine(provider, oracle)

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Snapshot(ctx); err != nil {
				t.Errorf("Snapshot failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// All 16 first reads share one in-flight rebuild.
	if calls := provider.calls.Load(); calls != 1 {
		t.Errorf("provider called %d times, want 1", calls)
	}
}

func TestGraphCache_SnapshotIsolation(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	_, cache := newTestEngine(provider, oracle)

	ctx := context.Background()
	before, err := cache.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	provider.set(endToEndRecords()[:1], nil)
	if _, err := cache.ForceRebuild(ctx); err != nil {
		t.Fatalf("ForceRebuild failed: %v", err)
	}

	// The old handle still sees its own consistent generation.
	if len(before.Graph.Edges) != 2 {
		t.Errorf("old generation mutated: %d edges", len(before.Graph.Edges))
	}
	after, _ := cache.Snapshot(ctx)
	if len(after.Graph.Edges) != 1 {
		t.Errorf("new generation edges = %d, want 1", len(after.Graph.Edges))
	}
	if before == after {
		t.Error("rebuild did not replace the snapshot")
	}
}

func TestEngine_RefreshOracleMarksGraphStale(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	ctx := context.Background()
	if _, _, err := engine.GetPrice(ctx, addr(0xA0)); err != nil {
		t.Fatalf("initial build failed: %v", err)
	}

	oracle.mu.Lock()
	oracle.price = anchorAt(70_000)
	oracle.mu.Unlock()

	if _, err := engine.RefreshOracle(ctx); err != nil {
		t.Fatalf("RefreshOracle failed: %v", err)
	}

	price, ok, err := engine.GetPrice(ctx, addr(0xA0))
	if err != nil || !ok {
		t.Fatalf("GetPrice failed: ok=%v err=%v", ok, err)
	}
	if price.ValueUsd != 70_000 {
		t.Errorf("anchor = %v, want repriced 70000", price.ValueUsd)
	}
}

func TestEngine_GetPaths(t *testing.T) {
	provider := &fakeProvider{}
	provider.set(endToEndRecords(), nil)
	oracle := &fakeOracle{price: anchorAt(60_000)}
	engine, _ := newTestEngine(provider, oracle)

	paths, err := engine.GetPaths(context.Background(), addr(0xC0), 4)
	if err != nil {
		t.Fatalf("GetPaths failed: %v", err)
	}
	if len(paths) != 1 {
		t.Fatalf("paths = %d, want 1 (X -> STABLE -> ANCHOR)", len(paths))
	}
	p := paths[0]
	if p.HopCount != 2 {
		t.Errorf("hopCount = %d, want 2", p.HopCount)
	}
	if p.Tokens[0] != addr(0xC0) || p.Tokens[len(p.Tokens)-1] != testAnchor.ID() {
		t.Errorf("path endpoints wrong: %v", p.Tokens)
	}
}
