package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// DealRow represents one deal event in the history list.
type DealRow struct {
	Timestamp string
	Pair      string
	Stage     string
	NetPnL    decimal.Decimal
	ROI       decimal.Decimal
	HasPnL    bool
}

// DealsComponent renders the deal history list, newest first.
type DealsComponent struct {
	rows    []DealRow
	maxRows int
}

// NewDealsComponent creates a new deals component.
func NewDealsComponent(maxRows int) *DealsComponent {
	return &DealsComponent{
		rows:    make([]DealRow, 0),
		maxRows: maxRows,
	}
}

// Add prepends a deal event to the list.
func (d *DealsComponent) Add(row DealRow) {
	d.rows = append([]DealRow{row}, d.rows...)
	if len(d.rows) > d.maxRows {
		d.rows = d.rows[:d.maxRows]
	}
}

// View renders the deals component.
func (d *DealsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	gainStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	var sb strings.Builder
	sb.WriteString(headerStyle.Render("DEALS"))
	sb.WriteString("\n\n")

	if len(d.rows) == 0 {
		sb.WriteString(dimStyle.Render("  No deals yet..."))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("  %-9s  %-16s  %-8s  %12s  %10s\n",
		"Time", "Pair", "Stage", "Net PnL", "ROI"))
	sb.WriteString(dimStyle.Render("  "+strings.Repeat("─", 62)) + "\n")

	for _, row := range d.rows {
		pnlStr := dimStyle.Render(fmt.Sprintf("%12s", "-"))
		roiStr := dimStyle.Render(fmt.Sprintf("%10s", "-"))
		if row.HasPnL {
			style := gainStyle
			if row.NetPnL.IsNegative() {
				style = lossStyle
			}
			pnlStr = style.Render(fmt.Sprintf("%12s", row.NetPnL.StringFixed(4)))
			roiStr = style.Render(fmt.Sprintf("%9s%%", row.ROI.StringFixed(2)))
		}

		sb.WriteString(fmt.Sprintf("  %-9s  %-16s  %-8s  %s  %s\n",
			row.Timestamp, row.Pair, row.Stage, pnlStr, roiStr))
	}

	return sb.String()
}
