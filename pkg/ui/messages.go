// Package ui provides the Bubble Tea TUI for the price engine.
package ui

import (
	oracledomain "github.com/r0zar/amm-price-engine/business/oracle/domain"
	"github.com/r0zar/amm-price-engine/business/pricing/domain"
	"github.com/r0zar/amm-price-engine/pkg/ui/components"
)

// Message types for TUI updates

// PricesMsg carries the latest discovered prices, already sorted by the
// producer. The UI displays, never recomputes.
type PricesMsg struct {
	Rows []components.PriceRow
}

// StatsMsg carries the current graph statistics.
type StatsMsg struct {
	Stats domain.Stats
}

// OracleMsg carries the anchor price and per-source health.
type OracleMsg struct {
	Price     *oracledomain.AnchorPrice
	Health    oracledomain.Health
	Sources   []oracledomain.SourceStatus
	Available bool
}

// PathsMsg carries the top ranked anchor paths for the focused token.
type PathsMsg struct {
	TokenSymbol string
	Rows        []components.PathRow
}

// RebuildRequestMsg asks the driver to force a graph rebuild.
type RebuildRequestMsg struct{}

// OracleRefreshRequestMsg asks the driver to force an oracle refresh.
type OracleRefreshRequestMsg struct{}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}

// WelcomeCompleteMsg signals the welcome screen is done (timeout or keypress).
type WelcomeCompleteMsg struct{}

// StartModulesMsg signals that modules should start loading.
type StartModulesMsg struct{}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed", "done"
	Message string // Optional message
}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}
