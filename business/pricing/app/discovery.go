package app

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/internal/logger"
	"github.com/r0zar/amm-price-engine/internal/token"
)

// Discovery propagation policy.
const (
	// MaxDiscoveryCycles is the hard cap on propagation cycles.
	MaxDiscoveryCycles = 10

	// ConfidenceDecay is multiplied onto the source confidence per hop.
	ConfidenceDecay = 0.8

	// StablecoinPriceUsd is the fixed seeded price for recognized stablecoins.
	StablecoinPriceUsd = 1.00

	// StablecoinConfidence is the seeded confidence for stablecoins.
	StablecoinConfidence = 0.95
)

// DiscoveryConfig holds the propagation knobs.
type DiscoveryConfig struct {
	MaxCycles       int
	ConfidenceDecay float64
}

// DefaultDiscoveryConfig returns the standard policy.
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		MaxCycles:       MaxDiscoveryCycles,
		ConfidenceDecay: ConfidenceDecay,
	}
}

// Discovery derives USD prices for every anchor-connected token by repeated
// propagation across pool edges with exactly one priced endpoint.
type Discovery struct {
	config      DiscoveryConfig
	anchor      token.ID
	stablecoins *token.StablecoinSet
	logger      logger.LoggerInterface
}

// NewDiscovery creates a Discovery runner.
func NewDiscovery(cfg DiscoveryConfig, anchor token.ID, stablecoins *token.StablecoinSet, log logger.LoggerInterface) *Discovery {
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = MaxDiscoveryCycles
	}
	if cfg.ConfidenceDecay <= 0 || cfg.ConfidenceDecay > 1 {
		cfg.ConfidenceDecay = ConfidenceDecay
	}
	return &Discovery{
		config:      cfg,
		anchor:      anchor,
		stablecoins: stablecoins,
		logger:      log,
	}
}

// Run seeds the anchor and stablecoin prices and propagates until converged
// or the cycle cap is hit. Tokens with no anchor-connected path stay absent;
// that is expected, not an error. A zero-valued anchor price (oracle
// unavailable) yields an empty map: no guessing.
func (d *Discovery) Run(ctx context.Context, graph *Graph, anchorPrice oracledomain.AnchorPrice) map[token.ID]domain.DiscoveredPrice {
	prices := make(map[token.ID]domain.DiscoveredPrice)

	if anchorPrice.IsZero() || anchorPrice.ValueUSD <= 0 {
		d.logger.Warn(ctx, "no anchor price, discovery returns empty map")
		return prices
	}

	// Seed the anchor at full confidence, then stablecoins at $1.00 unless
	// the anchor step already priced them.
	prices[d.anchor] = domain.DiscoveredPrice{
		TokenID:    d.anchor,
		ValueUsd:   anchorPrice.ValueUSD,
		Confidence: 1.0,
	}
	for id, node := range graph.Nodes {
		if id == d.anchor || !d.stablecoins.Contains(node.Symbol) {
			continue
		}
		prices[id] = domain.DiscoveredPrice{
			TokenID:    id,
			ValueUsd:   StablecoinPriceUsd,
			Confidence: StablecoinConfidence,
		}
	}

	cycles := 0
	for cycle := 0; cycle < d.config.MaxCycles; cycle++ {
		cycles++
		candidates := make(map[token.ID]domain.DiscoveredPrice)

		for _, edge := range graph.Edges {
			if d.isStablePair(graph, edge) {
				continue
			}

			known, unknown, ok := d.splitEndpoints(edge, prices)
			if !ok {
				continue
			}

			derived, ok := d.derive(graph, edge, known, unknown, prices[known])
			if !ok {
				continue
			}

			if existing, dup := candidates[unknown]; !dup || derived.Confidence > existing.Confidence {
				candidates[unknown] = derived
			}
		}

		if len(candidates) == 0 {
			break
		}
		for id, p := range candidates {
			prices[id] = p
		}
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("discovery.cycles", cycles),
		attribute.Int("discovery.priced", len(prices)),
	)

	d.logger.Debug(ctx, "discovery converged",
		"cycles", cycles,
		"priced", len(prices),
		"tokens", len(graph.Nodes))

	return prices
}

// isStablePair reports whether both legs are recognized stablecoins. The
// constant-product ratio of a pegged/pegged pool is not informative.
func (d *Discovery) isStablePair(graph *Graph, edge *domain.PoolEdge) bool {
	nodeA, okA := graph.Nodes[edge.TokenA]
	nodeB, okB := graph.Nodes[edge.TokenB]
	return okA && okB &&
		d.stablecoins.Contains(nodeA.Symbol) &&
		d.stablecoins.Contains(nodeB.Symbol)
}

// splitEndpoints returns (known, unknown) when exactly one endpoint is priced.
func (d *Discovery) splitEndpoints(edge *domain.PoolEdge, prices map[token.ID]domain.DiscoveredPrice) (known, unknown token.ID, ok bool) {
	_, aPriced := prices[edge.TokenA]
	_, bPriced := prices[edge.TokenB]

	switch {
	case aPriced && !bPriced:
		return edge.TokenA, edge.TokenB, true
	case bPriced && !aPriced:
		return edge.TokenB, edge.TokenA, true
	default:
		return known, unknown, false
	}
}

// derive computes the unknown endpoint's price from the constant-product
// exchange rate: priceUnknown = priceKnown * (decReserveKnown / decReserveUnknown).
func (d *Discovery) derive(graph *Graph, edge *domain.PoolEdge, known, unknown token.ID, source domain.DiscoveredPrice) (domain.DiscoveredPrice, bool) {
	knownNode := graph.Nodes[known]
	unknownNode := graph.Nodes[unknown]
	if knownNode == nil || unknownNode == nil {
		return domain.DiscoveredPrice{}, false
	}

	decKnown := token.AtomicToDecimal(edge.Reserve(known), knownNode.Decimals)
	decUnknown := token.AtomicToDecimal(edge.Reserve(unknown), unknownNode.Decimals)
	if decKnown <= 0 || decUnknown <= 0 {
		return domain.DiscoveredPrice{}, false
	}

	return domain.DiscoveredPrice{
		TokenID:    unknown,
		ValueUsd:   source.ValueUsd * (decKnown / decUnknown),
		Confidence: source.Confidence * d.config.ConfidenceDecay,
		ViaPoolID:  edge.PoolID,
	}, true
}
