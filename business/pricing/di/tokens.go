// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/r0zar/amm-price-engine/business/pricing/app"
	"github.com/r0zar/amm-price-engine/business/pricing/infra/poolstream"
	"github.com/r0zar/amm-price-engine/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine = di.NewToken[*app.Engine]("pricing.Engine")
)

// Private dependency tokens - internal to pricing module
var (
	PoolProvider = di.NewToken[app.PoolProvider]("pricing:poolProvider")
	Discovery    = di.NewToken[*app.Discovery]("pricing:discovery")
	PathFinder   = di.NewToken[*app.PathFinder]("pricing:pathFinder")
	GraphCache   = di.NewToken[*app.GraphCache]("pricing:graphCache")
	PoolStream   = di.NewToken[*poolstream.Stream]("pricing:poolStream")
)

// Helper functions for type-safe access
func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetPoolProvider(c di.ServiceRegistry) app.PoolProvider {
	return di.GetToken(c, PoolProvider)
}

func GetDiscovery(c di.ServiceRegistry) *app.Discovery {
	return di.GetToken(c, Discovery)
}

func GetPathFinder(c di.ServiceRegistry) *app.PathFinder {
	return di.GetToken(c, PathFinder)
}

func GetGraphCache(c di.ServiceRegistry) *app.GraphCache {
	return di.GetToken(c, GraphCache)
}

func GetPoolStream(c di.ServiceRegistry) *poolstream.Stream {
	return di.GetToken(c, PoolStream)
}
