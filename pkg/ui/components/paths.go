package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PathRow represents one ranked anchor route.
type PathRow struct {
	Route        string // "X → STABLE → ANCHOR"
	HopCount     int
	LiquidityUsd float64
	Reliability  float64
	Confidence   float64
}

// PathsComponent renders the top anchor paths for the focused token.
type PathsComponent struct {
	token string
	rows  []PathRow
}

// NewPathsComponent creates a new paths component.
func NewPathsComponent() *PathsComponent {
	return &PathsComponent{}
}

// Update replaces the displayed paths.
func (p *PathsComponent) Update(token string, rows []PathRow) {
	p.token = token
	p.rows = rows
}

// View renders the paths component.
func (p *PathsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))

	var sb strings.Builder
	title := "ANCHOR PATHS"
	if p.token != "" {
		title = fmt.Sprintf("ANCHOR PATHS (%s)", p.token)
	}
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n\n")

	if len(p.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No routes to the anchor."))
		return sb.String()
	}

	for i, row := range p.rows {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, row.Route))
		sb.WriteString(dimStyle.Render(fmt.Sprintf("     %d hops · %s liq · ", row.HopCount, formatUsd(row.LiquidityUsd))))
		sb.WriteString(okStyle.Render(fmt.Sprintf("rel %.3f", row.Reliability)))
		sb.WriteString(dimStyle.Render(fmt.Sprintf(" · conf %.2f", row.Confidence)))
		sb.WriteString("\n")
	}

	return sb.String()
}
