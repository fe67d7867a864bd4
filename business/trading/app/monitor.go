package app

import (
	"basisarb/business/trading/domain"

	"github.com/shopspring/decimal"
)

// Monitor marks one open deal to market on every qualifying tick, keeps the
// lifetime extrema of its net PnL, ROI and close ratio, and decides when the
// close-rule table fires.
type Monitor struct {
	rules []domain.CloseRule

	NetExtrema   domain.Extrema
	ROIExtrema   domain.Extrema
	CloseExtrema domain.Extrema
}

// NewMonitor builds a monitor for one position's lifetime.
func NewMonitor(rules []domain.CloseRule) *Monitor {
	return &Monitor{rules: rules}
}

// Evaluate computes current PnL and reports whether any close rule holds.
func (m *Monitor) Evaluate(open domain.OpenState, spotBid, swapAsk, openRatio, closeRatio decimal.Decimal) (domain.PnL, bool) {
	pnl := domain.ComputePnL(open, spotBid, swapAsk)

	m.NetExtrema.Observe(pnl.Net)
	m.ROIExtrema.Observe(pnl.ROI)
	m.CloseExtrema.Observe(closeRatio)

	return pnl, domain.ShouldClose(m.rules, openRatio, closeRatio)
}
