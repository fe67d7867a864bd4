// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PairRow represents one monitored pair in the ratio table.
type PairRow struct {
	Pair       string
	OpenRatio  decimal.Decimal
	CloseRatio decimal.Decimal
	MinOpen    decimal.Decimal
	MaxOpen    decimal.Decimal
	HasDeal    bool
	UpdatedAt  time.Time
}

// PairsComponent renders the per-pair ratio table.
type PairsComponent struct {
	rows      map[string]PairRow
	threshold decimal.Decimal
}

// NewPairsComponent creates a new pairs component.
func NewPairsComponent(threshold decimal.Decimal) *PairsComponent {
	return &PairsComponent{
		rows:      make(map[string]PairRow),
		threshold: threshold,
	}
}

// Update stores the latest row for a pair.
func (p *PairsComponent) Update(row PairRow) {
	p.rows[row.Pair] = row
}

// SetDeal flags whether a pair currently holds an open deal.
func (p *PairsComponent) SetDeal(pair string, open bool) {
	if row, ok := p.rows[pair]; ok {
		row.HasDeal = open
		p.rows[pair] = row
	} else {
		p.rows[pair] = PairRow{Pair: pair, HasDeal: open}
	}
}

// View renders the pairs component.
func (p *PairsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	hotStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	coldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	dealStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")).Bold(true)

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("PAIRS"))
	sb.WriteString("\n\n")

	if len(p.rows) == 0 {
		sb.WriteString(dimStyle.Render("  Waiting for market data..."))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-16s  %10s  %10s  %10s  %10s  %s\n",
		"Pair", "Open %", "Close %", "Min", "Max", "Deal"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 70)) + "\n")

	keys := make([]string, 0, len(p.rows))
	for k := range p.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		row := p.rows[k]

		ratioStyle := coldStyle
		if row.OpenRatio.GreaterThan(p.threshold) {
			ratioStyle = hotStyle
		}
		dealMark := dimStyle.Render("-")
		if row.HasDeal {
			dealMark = dealStyle.Render("OPEN")
		}

		sb.WriteString(fmt.Sprintf("  %-16s  %s  %10s  %10s  %10s  %s\n",
			row.Pair,
			ratioStyle.Render(fmt.Sprintf("%10s", row.OpenRatio.StringFixed(4))),
			row.CloseRatio.StringFixed(4),
			row.MinOpen.StringFixed(4),
			row.MaxOpen.StringFixed(4),
			dealMark,
		))
	}

	return sb.String()
}
