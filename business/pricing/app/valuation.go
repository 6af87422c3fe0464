package app

import (
	"math"

	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Valuate fills in USD liquidity for every edge and aggregates per-token
// totals. It runs on a graph generation before publication; published graphs
// are never touched.
//
// A pool missing either endpoint price keeps liquidityUsd = 0 and is
// excluded from ranking. No fallback estimation is substituted.
func Valuate(graph *Graph, prices map[token.ID]domain.DiscoveredPrice) {
	globalMax := 0.0

	for _, edge := range graph.Edges {
		edge.LiquidityUsd = 0
		edge.RelativeLiquidityPct = 0

		priceA, okA := prices[edge.TokenA]
		priceB, okB := prices[edge.TokenB]
		if !okA || !okB {
			continue
		}

		nodeA := graph.Nodes[edge.TokenA]
		nodeB := graph.Nodes[edge.TokenB]

		usdA := token.AtomicToDecimal(edge.ReserveA, nodeA.Decimals) * priceA.ValueUsd
		usdB := token.AtomicToDecimal(edge.ReserveB, nodeB.Decimals) * priceB.ValueUsd
		if usdA <= 0 || usdB <= 0 {
			continue
		}

		liquidity := math.Sqrt(usdA * usdB)
		if math.IsInf(liquidity, 0) || math.IsNaN(liquidity) {
			continue
		}

		edge.LiquidityUsd = liquidity
		if liquidity > globalMax {
			globalMax = liquidity
		}
	}

	for _, edge := range graph.Edges {
		if globalMax > 0 {
			edge.RelativeLiquidityPct = edge.LiquidityUsd / globalMax * 100
		}
	}

	for _, node := range graph.Nodes {
		node.TotalLiquidityUsd = 0
		node.PoolCount = 0
	}
	for _, edge := range graph.Edges {
		for _, id := range []token.ID{edge.TokenA, edge.TokenB} {
			if node, ok := graph.Nodes[id]; ok {
				node.TotalLiquidityUsd += edge.LiquidityUsd
				node.PoolCount++
			}
		}
	}
}
