// Package pricing implements the price discovery bounded context.
package pricing

import (
	"context"

	oracleDI "github.com/r0zar/amm-price-engine/business/oracle/di"
	"github.com/r0zar/amm-price-engine/business/pricing/app"
	pricingDI "github.com/r0zar/amm-price-engine/business/pricing/di"
	"github.com/r0zar/amm-price-engine/business/pricing/infra/poolapi"
	"github.com/r0zar/amm-price-engine/business/pricing/infra/poolstream"
	"github.com/r0zar/amm-price-engine/internal/config"
	"github.com/r0zar/amm-price-engine/internal/di"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/monolith"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Module implements the pricing bounded context.
type Module struct{}

// anchorToken resolves the configured anchor from the registry, falling back
// to a minimal token when the address is not registered.
func anchorToken(cfg *config.Config, registry *token.Registry) *token.Token {
	id := cfg.Pricing.AnchorAddressHex()
	if t, ok := registry.ByID(id); ok {
		return t
	}
	symbol := cfg.Pricing.AnchorSymbol
	if symbol == "" {
		symbol = "WBTC"
	}
	return token.New(id, symbol, 8)
}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register pool snapshot provider - private dependency
	di.RegisterToken(c, pricingDI.PoolProvider, func(sr di.ServiceRegistry) app.PoolProvider {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		providerCfg := poolapi.DefaultProviderConfig(cfg.Pools.APIURL)
		if cfg.Pools.RequestTimeout > 0 {
			providerCfg.RequestTimeout = cfg.Pools.RequestTimeout
		}
		providerCfg.RequestsPerMin = cfg.Pools.RequestsPerMin

		provider, err := poolapi.NewProvider(providerCfg, log)
		if err != nil {
			panic("failed to create pool provider: " + err.Error())
		}
		return provider
	})

	// Register discovery runner - private dependency
	di.RegisterToken(c, pricingDI.Discovery, func(sr di.ServiceRegistry) *app.Discovery {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		stables := sr.Get("stablecoins").(*token.StablecoinSet)

		discCfg := app.DefaultDiscoveryConfig()
		if cfg.Pricing.MaxCycles > 0 {
			discCfg.MaxCycles = cfg.Pricing.MaxCycles
		}
		if cfg.Pricing.ConfidenceDecay > 0 {
			discCfg.ConfidenceDecay = cfg.Pricing.ConfidenceDecay
		}

		return app.NewDiscovery(discCfg, cfg.Pricing.AnchorAddressHex(), stables, log)
	})

	// Register path finder - private dependency
	di.RegisterToken(c, pricingDI.PathFinder, func(sr di.ServiceRegistry) *app.PathFinder {
		cfg := sr.Get("config").(*config.Config)

		pfCfg := app.DefaultPathFinderConfig()
		if cfg.Paths.MaxDepth > 0 {
			pfCfg.MaxDepth = cfg.Paths.MaxDepth
		}
		if cfg.Paths.MaxResults > 0 {
			pfCfg.MaxResults = cfg.Paths.MaxResults
		}
		return app.NewPathFinder(pfCfg)
	})

	// Register graph cache - private dependency
	di.RegisterToken(c, pricingDI.GraphCache, func(sr di.ServiceRegistry) *app.GraphCache {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("tokenRegistry").(*token.Registry)

		return app.NewGraphCache(
			app.GraphCacheConfig{
				Protocol: cfg.Pools.Protocol,
				MaxAge:   cfg.Pricing.MaxAge,
			},
			pricingDI.GetPoolProvider(sr),
			oracleDI.GetAggregator(sr),
			pricingDI.GetDiscovery(sr),
			anchorToken(cfg, registry),
			log,
		)
	})

	// Register pool reserve stream - private dependency, nil when unconfigured
	di.RegisterToken(c, pricingDI.PoolStream, func(sr di.ServiceRegistry) *poolstream.Stream {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Pools.StreamURL == "" {
			return nil
		}
		stream, err := poolstream.New(poolstream.Config{
			URL:      cfg.Pools.StreamURL,
			Protocol: cfg.Pools.Protocol,
		}, pricingDI.GetGraphCache(sr), log)
		if err != nil {
			panic("failed to create pool stream: " + err.Error())
		}
		return stream
	})

	// Register Engine (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewEngine(
			pricingDI.GetGraphCache(sr),
			oracleDI.GetAggregator(sr),
			pricingDI.GetPathFinder(sr),
			cfg.Pricing.AnchorAddressHex(),
			log,
		)
	})

	return nil
}

// Startup builds the first graph generation and connects the reserve stream.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	services := mono.Services()

	engine := pricingDI.GetEngine(services)
	if stats, err := engine.GetStats(ctx); err != nil {
		log.Warn(ctx, "initial graph build failed, will retry on next read", "error", err)
	} else {
		log.Info(ctx, "liquidity graph built",
			"tokens", stats.TokenCount,
			"pools", stats.PoolCount,
			"priced", stats.PricedTokenCount)
	}

	// Stream connection happens in the background so a slow or absent stream
	// endpoint never blocks startup. wsconn reconnects on its own after that.
	if stream := pricingDI.GetPoolStream(services); stream != nil {
		go func() {
			if err := stream.Connect(context.WithoutCancel(ctx)); err != nil {
				log.Warn(ctx, "pool stream connection failed", "error", err)
			}
		}()
	}

	log.Info(ctx, "pricing module started")
	return nil
}
