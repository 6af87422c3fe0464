package domain

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/r0zar/amm-price-engine/internal/token"
)

// DiscoveredPrice is one token's derived USD price. Ephemeral: rebuilt on
// every discovery run, never persisted across graph generations.
type DiscoveredPrice struct {
	TokenID    token.ID       `json:"tokenId"`
	ValueUsd   float64        `json:"valueUsd"`
	Confidence float64        `json:"confidence"`
	ViaPoolID  common.Address `json:"viaPoolId,omitempty"` // zero for seeded prices
}

// PricePath is one route from a token to the anchor, ranked by reliability.
// Immutable value produced on demand.
type PricePath struct {
	Tokens            []token.ID       `json:"tokens"`
	Pools             []*PoolEdge      `json:"-"`
	PoolIDs           []common.Address `json:"pools"`
	TotalLiquidityUsd float64          `json:"totalLiquidityUsd"`
	HopCount          int              `json:"hopCount"`
	Reliability       float64          `json:"reliability"`
	Confidence        float64          `json:"confidence"`
}

// NestingCycleLevel marks an LP-nesting chain that loops back on itself.
const NestingCycleLevel = -1

// Stats is the engine-level statistics snapshot.
type Stats struct {
	TokenCount       int   `json:"tokenCount"`
	PoolCount        int   `json:"poolCount"`
	AnchorPairCount  int   `json:"anchorPairCount"`
	GraphAgeMs       int64 `json:"graphAgeMs"`
	PricedTokenCount int   `json:"pricedTokenCount"`
	// NestingCycleCount is how many pools sit on a circular LP-nesting
	// chain (sentinel level, surfaced here rather than raised as an error).
	NestingCycleCount int `json:"nestingCycleCount"`
	MaxNestingLevel   int `json:"maxNestingLevel"`
}
