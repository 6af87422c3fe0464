package app

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Graph is one immutable generation of the liquidity graph. It is built in
// full, published, and never mutated afterwards; rebuilds produce a new
// Graph while in-flight readers keep the old one.
type Graph struct {
	Nodes   map[token.ID]*domain.TokenNode
	Edges   []*domain.PoolEdge
	BuiltAt time.Time

	adjacency     map[token.ID][]*domain.PoolEdge
	nestingLevels map[common.Address]int
}

// Adjacent returns the edges incident to id.
func (g *Graph) Adjacent(id token.ID) []*domain.PoolEdge {
	return g.adjacency[id]
}

// Age returns how long ago this generation was built.
func (g *Graph) Age() time.Duration {
	return time.Since(g.BuiltAt)
}

// NestingLevel returns the LP-nesting level for a pool: 0 for a plain pool,
// n for a pool whose deepest LP-token leg sits n levels down, and
// domain.NestingCycleLevel when the chain loops.
func (g *Graph) NestingLevel(poolID common.Address) int {
	return g.nestingLevels[poolID]
}

// NestingCycleCount returns how many pools sit on a circular nesting chain.
func (g *Graph) NestingCycleCount() int {
	n := 0
	for _, level := range g.nestingLevels {
		if level == domain.NestingCycleLevel {
			n++
		}
	}
	return n
}

// MaxNestingLevel returns the deepest non-cycle nesting level.
func (g *Graph) MaxNestingLevel() int {
	max := 0
	for _, level := range g.nestingLevels {
		if level > max {
			max = level
		}
	}
	return max
}

// BuildGraph constructs a new graph generation from a pool snapshot. Invalid
// pools (nil, zero or negative reserves, zero geometric-mean liquidity) are
// skipped, not stored. The anchor token always gets a node, even with no
// pools at all.
func BuildGraph(ctx context.Context, records []domain.PoolRecord, anchor *token.Token, log logger.LoggerInterface) *Graph {
	g := &Graph{
		Nodes:         make(map[token.ID]*domain.TokenNode),
		Edges:         make([]*domain.PoolEdge, 0, len(records)),
		BuiltAt:       time.Now().UTC(),
		adjacency:     make(map[token.ID][]*domain.PoolEdge),
		nestingLevels: make(map[common.Address]int),
	}

	g.Nodes[anchor.ID()] = &domain.TokenNode{
		ID:       anchor.ID(),
		Symbol:   anchor.Symbol(),
		Decimals: anchor.Decimals(),
	}

	dropped := 0
	for _, rec := range records {
		if rec.ReserveA == nil || rec.ReserveB == nil ||
			rec.ReserveA.Sign() <= 0 || rec.ReserveB.Sign() <= 0 {
			log.Debug(ctx, "dropping pool with invalid reserves", "poolId", rec.PoolID.Hex())
			dropped++
			continue
		}

		decA := normalizeLegDecimals(ctx, rec.TokenA, log)
		decB := normalizeLegDecimals(ctx, rec.TokenB, log)

		gm := token.GeometricMeanLiquidity(rec.ReserveA, decA, rec.ReserveB, decB)
		if gm <= 0 || math.IsInf(gm, 0) || math.IsNaN(gm) {
			log.Debug(ctx, "dropping pool with degenerate liquidity", "poolId", rec.PoolID.Hex())
			dropped++
			continue
		}

		lastUpdated := rec.LastUpdated
		if lastUpdated.IsZero() {
			lastUpdated = g.BuiltAt
		}

		edge := &domain.PoolEdge{
			PoolID:      rec.PoolID,
			TokenA:      rec.TokenA.ID,
			TokenB:      rec.TokenB.ID,
			ReserveA:    new(big.Int).Set(rec.ReserveA),
			ReserveB:    new(big.Int).Set(rec.ReserveB),
			PathWeight:  1 / gm,
			LastUpdated: lastUpdated,
		}

		g.ensureNode(rec.TokenA, decA)
		g.ensureNode(rec.TokenB, decB)

		g.Edges = append(g.Edges, edge)
		g.adjacency[edge.TokenA] = append(g.adjacency[edge.TokenA], edge)
		g.adjacency[edge.TokenB] = append(g.adjacency[edge.TokenB], edge)
	}

	g.computeNestingLevels()

	log.Debug(ctx, "graph built",
		"tokens", len(g.Nodes),
		"pools", len(g.Edges),
		"dropped", dropped)

	return g
}

func (g *Graph) ensureNode(leg domain.TokenLeg, decimals uint8) {
	if _, ok := g.Nodes[leg.ID]; ok {
		return
	}
	g.Nodes[leg.ID] = &domain.TokenNode{
		ID:       leg.ID,
		Symbol:   leg.Symbol,
		Decimals: decimals,
	}
}

func normalizeLegDecimals(ctx context.Context, leg domain.TokenLeg, log logger.LoggerInterface) uint8 {
	normalized, fellBack := token.NormalizeDecimals(leg.Decimals)
	if fellBack {
		log.Warn(ctx, "token decimals out of range, falling back",
			"tokenId", leg.ID.Hex(),
			"observed", leg.Decimals,
			"fallback", normalized)
	}
	return normalized
}

// computeNestingLevels resolves the LP-nesting level of every pool. A leg
// whose token id equals another pool's id is that pool's LP token. Cycles
// get the sentinel level and are counted in stats, never raised as errors.
func (g *Graph) computeNestingLevels() {
	pools := make(map[common.Address]*domain.PoolEdge, len(g.Edges))
	for _, e := range g.Edges {
		pools[e.PoolID] = e
	}

	const unresolved = -2
	levels := make(map[common.Address]int, len(pools))
	for id := range pools {
		levels[id] = unresolved
	}

	onStack := make(map[common.Address]bool)

	var resolve func(id common.Address) int
	resolve = func(id common.Address) int {
		if level := levels[id]; level != unresolved {
			return level
		}
		if onStack[id] {
			return domain.NestingCycleLevel
		}
		onStack[id] = true
		defer delete(onStack, id)

		edge := pools[id]
		level := 0
		for _, leg := range []token.ID{edge.TokenA, edge.TokenB} {
			if _, isPool := pools[leg]; !isPool {
				continue
			}
			sub := resolve(leg)
			if sub == domain.NestingCycleLevel {
				level = domain.NestingCycleLevel
				break
			}
			if sub+1 > level {
				level = sub + 1
			}
		}
		levels[id] = level
		return level
	}

	for id := range pools {
		resolve(id)
	}
	g.nestingLevels = levels
}
