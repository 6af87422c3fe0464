package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// OracleSourceRow represents one quote source's health.
type OracleSourceRow struct {
	Name         string
	Priority     int
	BreakerState string // "closed", "half-open", "open"
	LastValue    float64
	LastSuccess  time.Time
	LastError    string
}

// OracleComponent renders the anchor price and per-source breaker health.
type OracleComponent struct {
	priceUsd   float64
	confidence float64
	source     string
	observedAt time.Time
	available  bool
	sources    []OracleSourceRow
}

// NewOracleComponent creates a new oracle component.
func NewOracleComponent() *OracleComponent {
	return &OracleComponent{}
}

// SetPrice updates the displayed anchor price.
func (o *OracleComponent) SetPrice(valueUsd, confidence float64, source string, observedAt time.Time) {
	o.priceUsd = valueUsd
	o.confidence = confidence
	o.source = source
	o.observedAt = observedAt
	o.available = true
}

// SetUnavailable marks the anchor price as missing.
func (o *OracleComponent) SetUnavailable() {
	o.available = false
}

// SetSources replaces the per-source rows.
func (o *OracleComponent) SetSources(rows []OracleSourceRow) {
	o.sources = rows
}

// View renders the oracle component.
func (o *OracleComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	downStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("ANCHOR ORACLE"))
	sb.WriteString("\n\n")

	if o.available {
		age := time.Since(o.observedAt).Round(time.Second)
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			okStyle.Render(fmt.Sprintf("$%.2f", o.priceUsd)),
			dimStyle.Render(fmt.Sprintf("conf %.2f · %s · %s ago", o.confidence, o.source, age))))
	} else {
		sb.WriteString(downStyle.Render("  price unavailable") + "\n")
	}
	sb.WriteString("\n")

	for _, row := range o.sources {
		var icon string
		var style lipgloss.Style
		switch row.BreakerState {
		case "closed":
			icon, style = "●", okStyle
		case "half-open":
			icon, style = "◐", warnStyle
		default:
			icon, style = "○", downStyle
		}

		detail := ""
		if row.LastError != "" && row.BreakerState != "closed" {
			detail = truncate(row.LastError, 32)
		} else if row.LastValue > 0 {
			detail = fmt.Sprintf("$%.2f", row.LastValue)
		}

		sb.WriteString(fmt.Sprintf("  %s %-10s %s  %s\n",
			style.Render(icon),
			row.Name,
			dimStyle.Render(fmt.Sprintf("p%d", row.Priority)),
			dimStyle.Render(detail),
		))
	}

	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
