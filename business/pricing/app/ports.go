// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
)

// PoolProvider supplies pool snapshots for one accounting domain. Staleness
// of the underlying reserves is the provider's concern.
type PoolProvider interface {
	// ListPools returns the current pool set for the given protocol
	// namespace, already filtered to pool-type records.
	ListPools(ctx context.Context, protocol string) ([]domain.PoolRecord, error)
}

// AnchorOracle supplies the anchor token's USD price. Implemented by the
// oracle context's aggregator.
type AnchorOracle interface {
	// AnchorPrice returns the cached-or-refreshed anchor price.
	AnchorPrice(ctx context.Context) (oracledomain.AnchorPrice, error)

	// Refresh forces a synchronous re-aggregation.
	Refresh(ctx context.Context) (oracledomain.AnchorPrice, error)
}
