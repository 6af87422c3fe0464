// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PriceRow represents one discovered token price.
type PriceRow struct {
	Symbol       string
	Address      string // abbreviated hex for display
	ValueUsd     float64
	Confidence   float64
	PoolCount    int
	LiquidityUsd float64
}

// PricesComponent renders the discovered-prices table.
type PricesComponent struct {
	rows    []PriceRow
	maxRows int
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent(maxRows int) *PricesComponent {
	return &PricesComponent{maxRows: maxRows}
}

// Update replaces the displayed rows. The producer sorts; rows beyond
// maxRows are dropped.
func (p *PricesComponent) Update(rows []PriceRow) {
	if len(rows) > p.maxRows {
		rows = rows[:p.maxRows]
	}
	p.rows = rows
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	highConf := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	midConf := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	lowConf := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("DISCOVERED PRICES"))
	sb.WriteString("\n\n")

	if len(p.rows) == 0 {
		sb.WriteString(dimStyle.Render("  Waiting for discovery run..."))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-8s  %-12s  %14s  %6s  %6s  %12s\n",
		"Token", "Address", "Price", "Conf", "Pools", "Liquidity"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 66)) + "\n")

	for _, row := range p.rows {
		confStyle := highConf
		switch {
		case row.Confidence < 0.5:
			confStyle = lowConf
		case row.Confidence < 0.8:
			confStyle = midConf
		}

		sb.WriteString(fmt.Sprintf("  %-8s  %-12s  %14s  %s  %6d  %12s\n",
			row.Symbol,
			dimStyle.Render(row.Address),
			formatUsd(row.ValueUsd),
			confStyle.Render(fmt.Sprintf("%5.2f", row.Confidence)),
			row.PoolCount,
			dimStyle.Render(formatUsd(row.LiquidityUsd)),
		))
	}

	return sb.String()
}

// formatUsd renders a dollar value with sensible precision for both
// sub-cent tokens and five-figure anchors.
func formatUsd(v float64) string {
	switch {
	case v == 0:
		return "$0.00"
	case v < 0.01:
		return fmt.Sprintf("$%.6f", v)
	case v < 1000:
		return fmt.Sprintf("$%.2f", v)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
