package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// StatsData holds the graph statistics for display.
type StatsData struct {
	TokenCount        int
	PoolCount         int
	AnchorPairCount   int
	PricedTokenCount  int
	GraphAge          time.Duration
	NestingCycleCount int
	MaxNestingLevel   int
}

// StatsComponent renders the graph statistics panel.
type StatsComponent struct {
	data StatsData
	set  bool
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update replaces the displayed stats.
func (s *StatsComponent) Update(data StatsData) {
	s.data = data
	s.set = true
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("GRAPH"))
	sb.WriteString("\n\n")

	if !s.set {
		sb.WriteString(dimStyle.Render("  Building..."))
		return sb.String()
	}

	d := s.data
	sb.WriteString(fmt.Sprintf("  Tokens: %d (%d priced)\n", d.TokenCount, d.PricedTokenCount))
	sb.WriteString(fmt.Sprintf("  Pools: %d (%d anchor pairs)\n", d.PoolCount, d.AnchorPairCount))
	sb.WriteString(fmt.Sprintf("  Age: %s\n", d.GraphAge.Round(time.Second)))
	if d.MaxNestingLevel > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  LP nesting: depth %d\n", d.MaxNestingLevel)))
	}
	if d.NestingCycleCount > 0 {
		sb.WriteString(warnStyle.Render(fmt.Sprintf("  LP nesting cycles: %d\n", d.NestingCycleCount)))
	}

	return sb.String()
}
