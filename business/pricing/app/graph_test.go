package app

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

func addr(n byte) common.Address {
	return common.BytesToAddress([]byte{n})
}

// e6 scales n into a 6-decimals atomic amount.
func e6(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000))
}

// e8 scales n into an 8-decimals atomic amount.
func e8(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(100_000_000))
}

func leg(id byte, symbol string, decimals uint8) domain.TokenLeg {
	return domain.TokenLeg{ID: addr(id), Symbol: symbol, Decimals: decimals}
}

func pool(poolID byte, a, b domain.TokenLeg, reserveA, reserveB *big.Int) domain.PoolRecord {
	return domain.PoolRecord{
		PoolID:   addr(poolID),
		TokenA:   a,
		TokenB:   b,
		ReserveA: reserveA,
		ReserveB: reserveB,
	}
}

var testAnchor = token.NewWithName(addr(0xA0), "ANCHOR", "Anchor", 6)

func TestBuildGraph_ValidPools(t *testing.T) {
	records := []domain.PoolRecord{
		pool(1, leg(0xA0, "ANCHOR", 6), leg(0xB0, "STABLE", 6), e6(10_000), e6(10_000)),
		pool(2, leg(0xB0, "STABLE", 6), leg(0xC0, "X", 6), e6(5_000), e6(1_000)),
	}

	g := BuildGraph(context.Background(), records, testAnchor, logger.Nop())

	if len(g.Edges) != 2 {
		t.Fatalf("edges = %d, want 2", len(g.Edges))
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}

	// Adjacency is undirected: STABLE touches both pools.
	if got := len(g.Adjacent(addr(0xB0))); got != 2 {
		t.Errorf("STABLE adjacency = %d, want 2", got)
	}
	if got := len(g.Adjacent(addr(0xA0))); got != 1 {
		t.Errorf("ANCHOR adjacency = %d, want 1", got)
	}

	// pathWeight = 1/geometricMean, so the deeper pool is the cheaper hop.
	var anchorPool, xPool *domain.PoolEdge
	for _, e := range g.Edges {
		switch e.PoolID {
		case addr(1):
			anchorPool = e
		case addr(2):
			xPool = e
		}
	}
	if anchorPool.PathWeight >= xPool.PathWeight {
		t.Errorf("higher-liquidity pool should have lower weight: %v vs %v",
			anchorPool.PathWeight, xPool.PathWeight)
	}
}

func TestBuildGraph_DropsInvalidPools(t *testing.T) {
	tests := []struct {
		name   string
		record domain.PoolRecord
	}{
		{
			name:   "zero_reserve",
			record: pool(1, leg(1, "A", 6), leg(2, "B", 6), big.NewInt(0), e6(1000)),
		},
		{
			name:   "negative_reserve",
			record: pool(1, leg(1, "A", 6), leg(2, "B", 6), e6(1000), big.NewInt(-5)),
		},
		{
			name: "nil_reserve",
			record: domain.PoolRecord{
				PoolID: addr(1), TokenA: leg(1, "A", 6), TokenB: leg(2, "B", 6),
				ReserveA: nil, ReserveB: e6(1000),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildGraph(context.Background(), []domain.PoolRecord{tt.record}, testAnchor, logger.Nop())
			if len(g.Edges) != 0 {
				t.Errorf("invalid pool stored as edge: %+v", g.Edges)
			}
		})
	}
}

func TestBuildGraph_AnchorNodeAlwaysPresent(t *testing.T) {
	g := BuildGraph(context.Background(), nil, testAnchor, logger.Nop())

	node, ok := g.Nodes[testAnchor.ID()]
	if !ok {
		t.Fatal("anchor node missing from empty graph")
	}
	if node.Symbol != "ANCHOR" {
		t.Errorf("anchor symbol = %q", node.Symbol)
	}
	if len(g.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(g.Edges))
	}
}

func TestBuildGraph_DecimalsFallback(t *testing.T) {
	records := []domain.PoolRecord{
		pool(1, leg(1, "WEIRD", 19), leg(2, "B", 6), e6(1000), e6(1000)),
	}

	g := BuildGraph(context.Background(), records, testAnchor, logger.Nop())

	node, ok := g.Nodes[addr(1)]
	if !ok {
		t.Fatal("node missing")
	}
	if node.Decimals != token.FallbackDecimals {
		t.Errorf("decimals = %d, want fallback %d", node.Decimals, token.FallbackDecimals)
	}
}

func TestBuildGraph_PreservesOldGenerationReserves(t *testing.T) {
	reserve := e6(1000)
	records := []domain.PoolRecord{
		pool(1, leg(1, "A", 6), leg(2, "B", 6), reserve, e6(2000)),
	}

	g := BuildGraph(context.Background(), records, testAnchor, logger.Nop())

	// Mutating the caller's big.Int must not reach the built edge.
	reserve.SetInt64(1)
	if g.Edges[0].ReserveA.Cmp(e6(1000)) != 0 {
		t.Error("edge reserve aliases the input record")
	}
}

func TestNestingLevels(t *testing.T) {
	// Pool 2's LP token (its own id) is a leg of pool 3: level 1.
	records := []domain.PoolRecord{
		pool(2, leg(1, "A", 6), leg(0xB0, "B", 6), e6(100), e6(100)),
		pool(3, leg(2, "A-B-LP", 6), leg(0xC0, "C", 6), e6(100), e6(100)),
	}

	g := BuildGraph(context.Background(), records, testAnchor, logger.Nop())

	if got := g.NestingLevel(addr(2)); got != 0 {
		t.Errorf("plain pool level = %d, want 0", got)
	}
	if got := g.NestingLevel(addr(3)); got != 1 {
		t.Errorf("nested pool level = %d, want 1", got)
	}
	if got := g.MaxNestingLevel(); got != 1 {
		t.Errorf("max level = %d, want 1", got)
	}
	if got := g.NestingCycleCount(); got != 0 {
		t.Errorf("cycle count = %d, want 0", got)
	}
}

func TestNestingLevels_CycleSentinel(t *testing.T) {
	// Pool 1 holds pool 2's LP token and vice versa: a circular chain.
	records := []domain.PoolRecord{
		pool(1, leg(2, "LP2", 6), leg(0xB0, "B", 6), e6(100), e6(100)),
		pool(2, leg(1, "LP1", 6), leg(0xC0, "C", 6), e6(100), e6(100)),
	}

	g := BuildGraph(context.Background(), records, testAnchor, logger.Nop())

	if got := g.NestingLevel(addr(1)); got != domain.NestingCycleLevel {
		t.Errorf("level = %d, want sentinel %d", got, domain.NestingCycleLevel)
	}
	if got := g.NestingCycleCount(); got != 2 {
		t.Errorf("cycle count = %d, want 2", got)
	}
}

func TestGraphAge(t *testing.T) {
	g := BuildGraph(context.Background(), nil, testAnchor, logger.Nop())
	if g.Age() < 0 || g.Age() > time.Minute {
		t.Errorf("unreasonable age %v", g.Age())
	}
}
