package report

import (
	"basisarb/business/trading/domain"
	"basisarb/pkg/ui"

	"github.com/shopspring/decimal"
)

// TUIReporter forwards pair and deal rows to the terminal dashboard. Sends
// degrade to no-ops when the dashboard is not running.
type TUIReporter struct{}

// NewTUIReporter builds the reporter.
func NewTUIReporter() *TUIReporter {
	return &TUIReporter{}
}

// PairStatus implements app.Reporter.
func (r *TUIReporter) PairStatus(pairKey string, openRatio, closeRatio decimal.Decimal, extrema domain.Extrema) {
	ui.Send(ui.PairStatusMsg{
		Pair:       pairKey,
		OpenRatio:  openRatio,
		CloseRatio: closeRatio,
		Extrema:    extrema,
	})
}

// DealUpdate implements app.Reporter.
func (r *TUIReporter) DealUpdate(deal *domain.Deal, pnl *domain.PnL) {
	ui.Send(ui.DealMsg{Deal: deal, PnL: pnl})
}
