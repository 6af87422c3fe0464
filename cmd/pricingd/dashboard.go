package main

import (
	"context"
	"sort"
	"time"

	oracleapp "github.com/r0zar/amm-price-engine/business/oracle/app"
	oracleDI "github.com/r0zar/amm-price-engine/business/oracle/di"
	pricingapp "github.com/r0zar/amm-price-engine/business/pricing/app"
	pricingDI "github.com/r0zar/amm-price-engine/business/pricing/di"
	"github.com/r0zar/amm-price-engine/internal/config"
	"github.com/r0zar/amm-price-engine/internal/di"
	"github.com/r0zar/amm-price-engine/internal/token"
	"github.com/r0zar/amm-price-engine/pkg/ui"
	"github.com/r0zar/amm-price-engine/pkg/ui/components"
)

// dashboardFeed periodically snapshots the engine and pushes display rows
// to the TUI. All sorting and formatting decisions happen here, the UI
// only renders what it is given.
type dashboardFeed struct {
	engine   *pricingapp.Engine
	cache    *pricingapp.GraphCache
	oracle   *oracleapp.Aggregator
	interval time.Duration
}

func newDashboardFeed(cfg *config.Config, sr di.ServiceRegistry) *dashboardFeed {
	f := &dashboardFeed{
		engine:   pricingDI.GetEngine(sr),
		cache:    pricingDI.GetGraphCache(sr),
		oracle:   oracleDI.GetAggregator(sr),
		interval: cfg.Pricing.RefreshInterval,
	}
	if f.interval <= 0 {
		f.interval = time.Minute
	}

	ui.OnRebuild = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := f.engine.ForceRebuild(ctx); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			return
		}
		f.push(ctx)
	}
	ui.OnOracleRefresh = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := f.engine.RefreshOracle(ctx); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			return
		}
		f.push(ctx)
	}
	return f
}

// Run pushes an immediate update, then one per interval until ctx is done.
func (f *dashboardFeed) Run(ctx context.Context) {
	f.push(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.push(ctx)
		}
	}
}

func (f *dashboardFeed) push(ctx context.Context) {
	f.pushOracle(ctx)

	snap, err := f.cache.Snapshot(ctx)
	if err != nil {
		ui.Send(ui.ErrorMsg{Error: err})
		return
	}

	stats, err := f.engine.GetStats(ctx)
	if err == nil {
		ui.Send(ui.StatsMsg{Stats: stats})
	}

	ui.Send(ui.PricesMsg{Rows: f.priceRows(snap)})
	f.pushPaths(ctx, snap)
}

func (f *dashboardFeed) pushOracle(ctx context.Context) {
	msg := ui.OracleMsg{
		Health:  f.oracle.Health(),
		Sources: f.oracle.SourceStatuses(),
	}
	if price, err := f.oracle.AnchorPrice(ctx); err == nil {
		msg.Price = &price
		msg.Available = true
	}
	ui.Send(msg)
}

func (f *dashboardFeed) priceRows(snap *pricingapp.Snapshot) []components.PriceRow {
	rows := make([]components.PriceRow, 0, len(snap.Prices))
	for id, price := range snap.Prices {
		row := components.PriceRow{
			Symbol:     id.Hex()[:10],
			Address:    id.Hex(),
			ValueUsd:   price.ValueUsd,
			Confidence: price.Confidence,
		}
		if node, ok := snap.Graph.Nodes[id]; ok {
			row.Symbol = node.Symbol
			row.PoolCount = node.PoolCount
			row.LiquidityUsd = node.TotalLiquidityUsd
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LiquidityUsd != rows[j].LiquidityUsd {
			return rows[i].LiquidityUsd > rows[j].LiquidityUsd
		}
		return rows[i].Symbol < rows[j].Symbol
	})
	return rows
}

// pushPaths focuses the paths panel on the deepest-liquidity priced token
// that is not the anchor itself.
func (f *dashboardFeed) pushPaths(ctx context.Context, snap *pricingapp.Snapshot) {
	anchor := f.engine.Anchor()

	var focus token.ID
	var focusLiq float64
	for id := range snap.Prices {
		if id == anchor {
			continue
		}
		node, ok := snap.Graph.Nodes[id]
		if !ok {
			continue
		}
		if focus == (token.ID{}) || node.TotalLiquidityUsd > focusLiq {
			focus = id
			focusLiq = node.TotalLiquidityUsd
		}
	}
	if focus == (token.ID{}) {
		return
	}

	paths, err := f.engine.GetPaths(ctx, focus, 0)
	if err != nil || len(paths) == 0 {
		return
	}

	rows := make([]components.PathRow, 0, len(paths))
	for _, p := range paths {
		rows = append(rows, components.PathRow{
			Route:        routeString(snap, p.Tokens),
			HopCount:     p.HopCount,
			LiquidityUsd: p.TotalLiquidityUsd,
			Reliability:  p.Reliability,
			Confidence:   p.Confidence,
		})
	}

	symbol := focus.Hex()[:10]
	if node, ok := snap.Graph.Nodes[focus]; ok {
		symbol = node.Symbol
	}
	ui.Send(ui.PathsMsg{TokenSymbol: symbol, Rows: rows})
}

func routeString(snap *pricingapp.Snapshot, tokens []token.ID) string {
	route := ""
	for i, id := range tokens {
		if i > 0 {
			route += " > "
		}
		if node, ok := snap.Graph.Nodes[id]; ok {
			route += node.Symbol
		} else {
			route += id.Hex()[:10]
		}
	}
	return route
}
