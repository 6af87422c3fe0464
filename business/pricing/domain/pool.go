// Package domain contains the core domain types for the pricing context.
package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/internal/token"
)

// TokenLeg is one side of a pool as reported by the pool data provider.
type TokenLeg struct {
	ID       token.ID `json:"id"`
	Symbol   string   `json:"symbol"`
	Decimals uint8    `json:"decimals"`
}

// PoolRecord is the raw pool snapshot consumed from the provider, before
// validation. Reserves are atomic (integer, precision-scaled) amounts.
type PoolRecord struct {
	PoolID      common.Address `json:"poolId"`
	TokenA      TokenLeg       `json:"tokenA"`
	TokenB      TokenLeg       `json:"tokenB"`
	ReserveA    *big.Int       `json:"reserveA"`
	ReserveB    *big.Int       `json:"reserveB"`
	LastUpdated time.Time      `json:"lastUpdated,omitempty"`
}

// TokenNode is one distinct token observed in the pool set. Mutated only
// while a graph generation is being built; published graphs are immutable.
type TokenNode struct {
	ID                token.ID
	Symbol            string
	Decimals          uint8 // normalized to [0,18], fallback applied
	TotalLiquidityUsd float64
	PoolCount         int
}

// PoolEdge is one valid pool: both reserves strictly positive. Invalid pools
// are dropped during build, never stored as zero-liquidity edges.
type PoolEdge struct {
	PoolID               common.Address
	TokenA               token.ID
	TokenB               token.ID
	ReserveA             *big.Int
	ReserveB             *big.Int
	LiquidityUsd         float64
	RelativeLiquidityPct float64
	PathWeight           float64
	LastUpdated          time.Time
}

// Other returns the opposite endpoint of the edge.
func (e *PoolEdge) Other(id token.ID) token.ID {
	if e.TokenA == id {
		return e.TokenB
	}
	return e.TokenA
}

// Reserve returns the atomic reserve for the given endpoint.
func (e *PoolEdge) Reserve(id token.ID) *big.Int {
	if e.TokenA == id {
		return e.ReserveA
	}
	return e.ReserveB
}
