package app

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/apperror"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

const tracerName = "business/pricing"

// Snapshot pairs one graph generation with the discovery results computed
// against it. Readers always see a consistent (graph, prices) pair.
type Snapshot struct {
	Graph  *Graph
	Prices map[token.ID]domain.DiscoveredPrice
}

// GraphCacheConfig holds cache policy.
type GraphCacheConfig struct {
	Protocol string        // protocol namespace passed to the pool provider
	MaxAge   time.Duration // rebuild when the current generation is older
}

// GraphCache owns the only shared mutable resource in the engine: the
// current (graph, prices) snapshot. It is replaced wholesale on rebuild,
// never edited; concurrent staleness-triggered rebuilds coalesce into one
// in-flight rebuild shared by all waiters.
type GraphCache struct {
	config    GraphCacheConfig
	provider  PoolProvider
	oracle    AnchorOracle
	discovery *Discovery
	anchor    *token.Token
	logger    logger.LoggerInterface

	current   atomic.Pointer[Snapshot]
	staleMark atomic.Int64 // unix nanos; generations built before it are stale
	group     singleflight.Group

	rebuildCounter metric.Int64Counter
}

// NewGraphCache creates an empty cache. The first read triggers a build.
func NewGraphCache(cfg GraphCacheConfig, provider PoolProvider, oracle AnchorOracle, discovery *Discovery, anchor *token.Token, log logger.LoggerInterface) *GraphCache {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}

	meter := otel.Meter(tracerName)
	rebuildCounter, err := meter.Int64Counter("graph_rebuild_total",
		metric.WithDescription("Liquidity graph rebuilds"))
	if err != nil {
		log.Warn(context.Background(), "failed to create rebuild counter", "error", err)
	}

	return &GraphCache{
		config:         cfg,
		provider:       provider,
		oracle:         oracle,
		discovery:      discovery,
		anchor:         anchor,
		logger:         log,
		rebuildCounter: rebuildCounter,
	}
}

// Snapshot returns the current generation, rebuilding first when absent or
// stale. When a rebuild fails but an older generation exists, the older one
// is served and the failure logged.
func (c *GraphCache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil && !c.needsRebuild(snap) {
		return snap, nil
	}
	return c.rebuildShared(ctx, false)
}

// ForceRebuild discards freshness checks and rebuilds now.
func (c *GraphCache) ForceRebuild(ctx context.Context) (*Snapshot, error) {
	return c.rebuildShared(ctx, true)
}

// MarkStale flags the current generation so the next read rebuilds. Used by
// the reserve-update stream; live snapshots are never mutated.
func (c *GraphCache) MarkStale() {
	c.staleMark.Store(time.Now().UnixNano())
}

func (c *GraphCache) needsRebuild(snap *Snapshot) bool {
	if snap.Graph.Age() > c.config.MaxAge {
		return true
	}
	return snap.Graph.BuiltAt.UnixNano() < c.staleMark.Load()
}

func (c *GraphCache) rebuildShared(ctx context.Context, force bool) (*Snapshot, error) {
	v, err, _ := c.group.Do("rebuild", func() (any, error) {
		// A waiter that queued behind a finished rebuild sees a fresh
		// generation here and skips the redundant run.
		if snap := c.current.Load(); snap != nil && !force && !c.needsRebuild(snap) {
			return snap, nil
		}
		return c.rebuild(ctx)
	})
	if err != nil {
		if snap := c.current.Load(); snap != nil {
			c.logger.Warn(ctx, "rebuild failed, serving previous generation",
				"error", err,
				"graphAge", c.current.Load().Graph.Age().String())
			return snap, nil
		}
		return nil, err
	}
	return v.(*Snapshot), nil
}

func (c *GraphCache) rebuild(ctx context.Context) (*Snapshot, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pricing.rebuild")
	defer span.End()

	started := time.Now()

	records, err := c.provider.ListPools(ctx, c.config.Protocol)
	if err != nil {
		if c.rebuildCounter != nil {
			c.rebuildCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", false)))
		}
		return nil, apperror.New(apperror.CodePoolFetchFailed, apperror.WithCause(err))
	}

	graph := BuildGraph(ctx, records, c.anchor, c.logger)

	// Oracle unavailability degrades to an unpriced graph, not a failure.
	anchorPrice, err := c.oracle.AnchorPrice(ctx)
	if err != nil {
		c.logger.Warn(ctx, "anchor price unavailable, graph will be unpriced", "error", err)
	}

	prices := c.discovery.Run(ctx, graph, anchorPrice)
	Valuate(graph, prices)

	snap := &Snapshot{Graph: graph, Prices: prices}
	c.current.Store(snap)

	if c.rebuildCounter != nil {
		c.rebuildCounter.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", true)))
	}
	span.SetAttributes(
		attribute.Int("pools", len(graph.Edges)),
		attribute.Int("tokens", len(graph.Nodes)),
		attribute.Int("priced", len(prices)),
	)

	c.logger.Info(ctx, "graph generation rebuilt",
		"pools", len(graph.Edges),
		"tokens", len(graph.Nodes),
		"priced", len(prices),
		"took", time.Since(started).String())

	return snap, nil
}
