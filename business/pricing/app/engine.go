package app

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Engine is the exposed query surface of the price-discovery core.
type Engine struct {
	cache      *GraphCache
	oracle     AnchorOracle
	pathfinder *PathFinder
	anchor     token.ID
	logger     logger.LoggerInterface
	tracer     trace.Tracer
}

// NewEngine creates the query engine.
func NewEngine(cache *GraphCache, oracle AnchorOracle, pathfinder *PathFinder, anchor token.ID, log logger.LoggerInterface) *Engine {
	return &Engine{
		cache:      cache,
		oracle:     oracle,
		pathfinder: pathfinder,
		anchor:     anchor,
		logger:     log,
		tracer:     otel.Tracer(tracerName),
	}
}

// GetPrice returns the discovered USD price and confidence for a token.
// ok=false means the token has no anchor-connected path (or pricing is
// temporarily unavailable); that is not an error.
func (e *Engine) GetPrice(ctx context.Context, id token.ID) (price domain.DiscoveredPrice, ok bool, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.get_price",
		trace.WithAttributes(attribute.String("tokenId", id.Hex())))
	defer span.End()

	snap, err := e.cache.Snapshot(ctx)
	if err != nil {
		return domain.DiscoveredPrice{}, false, err
	}

	price, ok = snap.Prices[id]
	span.SetAttributes(attribute.Bool("priced", ok))
	return price, ok, nil
}

// GetPaths returns ranked routes from the token to the anchor.
func (e *Engine) GetPaths(ctx context.Context, id token.ID, maxDepth int) ([]domain.PricePath, error) {
	ctx, span := e.tracer.Start(ctx, "engine.get_paths",
		trace.WithAttributes(
			attribute.String("tokenId", id.Hex()),
			attribute.Int("maxDepth", maxDepth),
		))
	defer span.End()

	snap, err := e.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	paths := e.pathfinder.FindPaths(snap.Graph, id, e.anchor, maxDepth)
	span.SetAttributes(attribute.Int("paths", len(paths)))
	return paths, nil
}

// GetStats returns engine statistics for the current generation.
func (e *Engine) GetStats(ctx context.Context) (domain.Stats, error) {
	snap, err := e.cache.Snapshot(ctx)
	if err != nil {
		return domain.Stats{}, err
	}

	graph := snap.Graph
	return domain.Stats{
		TokenCount:        len(graph.Nodes),
		PoolCount:         len(graph.Edges),
		AnchorPairCount:   len(graph.Adjacent(e.anchor)),
		GraphAgeMs:        graph.Age().Milliseconds(),
		PricedTokenCount:  len(snap.Prices),
		NestingCycleCount: graph.NestingCycleCount(),
		MaxNestingLevel:   graph.MaxNestingLevel(),
	}, nil
}

// ForceRebuild discards the current generation and rebuilds now.
func (e *Engine) ForceRebuild(ctx context.Context) error {
	_, err := e.cache.ForceRebuild(ctx)
	return err
}

// RefreshOracle forces a synchronous anchor re-aggregation and marks the
// graph stale so the next read reprices against the new anchor.
func (e *Engine) RefreshOracle(ctx context.Context) (oracledomain.AnchorPrice, error) {
	price, err := e.oracle.Refresh(ctx)
	if err != nil {
		return oracledomain.AnchorPrice{}, err
	}
	e.cache.MarkStale()
	return price, nil
}

// Anchor returns the anchor token id.
func (e *Engine) Anchor() token.ID {
	return e.anchor
}
