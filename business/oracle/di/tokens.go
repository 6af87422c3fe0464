// Package di contains dependency injection tokens for the oracle context.
package di

import (
	"github.com/r0zar/amm-price-engine/business/oracle/app"
	"github.com/r0zar/amm-price-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("oracle.Aggregator")
)

// Private dependency tokens - internal to oracle module
var (
	CacheStore = di.NewToken[app.CacheStore]("oracle:cacheStore")
	Sources    = di.NewToken[[]app.QuoteSource]("oracle:sources")
)

// Helper functions for type-safe access
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetCacheStore(c di.ServiceRegistry) app.CacheStore {
	return di.GetToken(c, CacheStore)
}

func GetSources(c di.ServiceRegistry) []app.QuoteSource {
	return di.GetToken(c, Sources)
}
