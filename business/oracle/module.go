// Package oracle implements the anchor-price bounded context.
package oracle

import (
	"context"

	"github.com/r0zar/amm-price-engine/business/oracle/app"
	oracleDI "github.com/r0zar/amm-price-engine/business/oracle/di"
	"github.com/r0zar/amm-price-engine/business/oracle/infra/cachestore"
	"github.com/r0zar/amm-price-engine/business/oracle/infra/source"
	"github.com/r0zar/amm-price-engine/internal/config"
	"github.com/r0zar/amm-price-engine/internal/di"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/monolith"
)

// Module implements the oracle bounded context.
type Module struct{}

// RegisterServices registers all oracle services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register CacheStore (bbolt when a cache path is configured) - private dependency
	di.RegisterToken(c, oracleDI.CacheStore, func(sr di.ServiceRegistry) app.CacheStore {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		if cfg.Oracle.CachePath != "" {
			store, err := cachestore.NewBolt(cfg.Oracle.CachePath)
			if err != nil {
				log.Warn(context.Background(), "persistent cache store unavailable, falling back to memory",
					"path", cfg.Oracle.CachePath, "error", err)
				return cachestore.NewMemory()
			}
			return store
		}
		return cachestore.NewMemory()
	})

	// Register quote sources - private dependency
	di.RegisterToken(c, oracleDI.Sources, func(sr di.ServiceRegistry) []app.QuoteSource {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		sources := make([]app.QuoteSource, 0, len(cfg.Oracle.Sources))
		for _, sc := range cfg.Oracle.Sources {
			if !sc.Enabled {
				continue
			}
			src, err := source.New(source.Config{
				Name:           sc.Name,
				URL:            sc.URL,
				Priority:       sc.Priority,
				RequestTimeout: cfg.Oracle.RequestTimeout,
				RequestsPerMin: cfg.Oracle.RequestsPerMin,
			}, log)
			if err != nil {
				panic("failed to create oracle source: " + err.Error())
			}
			sources = append(sources, src)
		}
		return sources
	})

	// Register Aggregator (public - exposed to other modules)
	di.RegisterToken(c, oracleDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		aggCfg := app.DefaultAggregatorConfig()
		if cfg.Oracle.RequestTimeout > 0 {
			aggCfg.RequestTimeout = cfg.Oracle.RequestTimeout
		}
		if cfg.Oracle.FreshWindow > 0 {
			aggCfg.FreshWindow = cfg.Oracle.FreshWindow
		}
		if cfg.Oracle.StaleWindow > 0 {
			aggCfg.StaleWindow = cfg.Oracle.StaleWindow
		}

		return app.NewAggregator(aggCfg,
			oracleDI.GetSources(sr),
			oracleDI.GetCacheStore(sr),
			log)
	})

	return nil
}

// Startup warms the anchor-price cache so the first discovery run does not
// block on network fan-out.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	agg := oracleDI.GetAggregator(mono.Services())

	if price, err := agg.AnchorPrice(ctx); err != nil {
		log.Warn(ctx, "anchor price not available at startup", "error", err)
	} else {
		log.Info(ctx, "anchor price warmed",
			"valueUsd", price.ValueUSD,
			"confidence", price.Confidence,
			"source", price.Source)
	}

	log.Info(ctx, "oracle module started")
	return nil
}
