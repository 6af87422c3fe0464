package app

import (
	"math"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Path-ranking constants.
const (
	// DefaultMaxDepth bounds the DFS hop count.
	DefaultMaxDepth = 4

	// DefaultMaxPaths truncates the ranked result list.
	DefaultMaxPaths = 10

	// liquidityScoreCapUsd saturates the per-path liquidity score.
	liquidityScoreCapUsd = 10_000

	// confidenceCapUsd saturates the per-path confidence.
	confidenceCapUsd = 50_000

	// recencyHorizon is the linear age decay horizon for reliability.
	recencyHorizon = 24 * time.Hour
)

// PathFinderConfig bounds the search.
type PathFinderConfig struct {
	MaxDepth   int
	MaxResults int
}

// DefaultPathFinderConfig returns the standard bounds.
func DefaultPathFinderConfig() PathFinderConfig {
	return PathFinderConfig{
		MaxDepth:   DefaultMaxDepth,
		MaxResults: DefaultMaxPaths,
	}
}

// PathFinder enumerates routes between a token and the anchor with a
// depth-bounded DFS. The visited set is scoped per branch: membership is
// removed on return, so a node can appear in different sibling branches but
// never twice within one path.
type PathFinder struct {
	config PathFinderConfig
}

// NewPathFinder creates a PathFinder.
func NewPathFinder(cfg PathFinderConfig) *PathFinder {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxPaths
	}
	return &PathFinder{config: cfg}
}

// FindPaths returns up to MaxResults paths from source to target, sorted
// descending by reliability / hopCount^1.5. source == target yields an
// empty list: there is no self-path.
func (f *PathFinder) FindPaths(graph *Graph, source, target token.ID, maxDepth int) []domain.PricePath {
	if source == target {
		return nil
	}
	if maxDepth <= 0 || maxDepth > f.config.MaxDepth {
		maxDepth = f.config.MaxDepth
	}

	var (
		paths   []domain.PricePath
		visited = make(map[token.ID]bool)
		trail   []*domain.PoolEdge
	)

	var walk func(current token.ID, depth int)
	walk = func(current token.ID, depth int) {
		visited[current] = true
		defer delete(visited, current)

		for _, edge := range graph.Adjacent(current) {
			next := edge.Other(current)
			if visited[next] {
				continue
			}

			trail = append(trail, edge)
			if next == target {
				paths = append(paths, f.buildPath(graph, source, trail))
			} else if depth+1 < maxDepth {
				walk(next, depth+1)
			}
			trail = trail[:len(trail)-1]
		}
	}
	walk(source, 0)

	sort.SliceStable(paths, func(i, j int) bool {
		return rankScore(paths[i]) > rankScore(paths[j])
	})
	if len(paths) > f.config.MaxResults {
		paths = paths[:f.config.MaxResults]
	}
	return paths
}

func (f *PathFinder) buildPath(graph *Graph, source token.ID, trail []*domain.PoolEdge) domain.PricePath {
	hopCount := len(trail)

	tokens := make([]token.ID, 0, hopCount+1)
	poolIDs := make([]common.Address, 0, hopCount)
	pools := make([]*domain.PoolEdge, hopCount)
	copy(pools, trail)

	current := source
	tokens = append(tokens, current)

	var (
		totalLiquidity float64
		minLiquidity   = math.Inf(1)
		oldest         time.Time
	)
	for _, edge := range pools {
		current = edge.Other(current)
		tokens = append(tokens, current)
		poolIDs = append(poolIDs, edge.PoolID)

		totalLiquidity += edge.LiquidityUsd
		if edge.LiquidityUsd < minLiquidity {
			minLiquidity = edge.LiquidityUsd
		}
		if oldest.IsZero() || edge.LastUpdated.Before(oldest) {
			oldest = edge.LastUpdated
		}
	}

	liquidityScore := math.Min(1, minLiquidity/liquidityScoreCapUsd)
	ageMs := float64(time.Since(oldest).Milliseconds())
	recencyScore := math.Max(0, 1-ageMs/float64(recencyHorizon.Milliseconds()))
	pathLengthPenalty := 1 / math.Sqrt(float64(hopCount))

	return domain.PricePath{
		Tokens:            tokens,
		Pools:             pools,
		PoolIDs:           poolIDs,
		TotalLiquidityUsd: totalLiquidity,
		HopCount:          hopCount,
		Reliability:       liquidityScore * recencyScore * pathLengthPenalty,
		Confidence:        math.Min(1, totalLiquidity/confidenceCapUsd),
	}
}

func rankScore(p domain.PricePath) float64 {
	if p.HopCount == 0 {
		return 0
	}
	return p.Reliability / math.Pow(float64(p.HopCount), 1.5)
}
