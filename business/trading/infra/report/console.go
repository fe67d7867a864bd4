// Package report implements the one-way display sink on the process log.
package report

import (
	"context"

	"basisarb/business/trading/domain"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

// ConsoleReporter pushes pair and deal rows into the structured log. The
// engine only writes to it; nothing is read back.
type ConsoleReporter struct {
	log logger.LoggerInterface
}

// NewConsoleReporter builds the reporter.
func NewConsoleReporter(log logger.LoggerInterface) *ConsoleReporter {
	return &ConsoleReporter{log: log}
}

// PairStatus implements app.Reporter.
func (r *ConsoleReporter) PairStatus(pairKey string, openRatio, closeRatio decimal.Decimal, extrema domain.Extrema) {
	r.log.Debug(context.Background(), "pair status",
		"pair", pairKey,
		"open_ratio", openRatio.StringFixed(4),
		"close_ratio", closeRatio.StringFixed(4),
		"open_ratio_min", extrema.Min.StringFixed(4),
		"open_ratio_max", extrema.Max.StringFixed(4))
}

// DealUpdate implements app.Reporter.
func (r *ConsoleReporter) DealUpdate(deal *domain.Deal, pnl *domain.PnL) {
	if pnl == nil {
		r.log.Info(context.Background(), "deal update",
			"pair", deal.PairKey, "stage", deal.Stage)
		return
	}
	r.log.Info(context.Background(), "open deal mark",
		"pair", deal.PairKey,
		"stage", deal.Stage,
		"gross_pnl", pnl.Gross.StringFixed(4),
		"net_pnl", pnl.Net.StringFixed(4),
		"roi", pnl.ROI.StringFixed(4))
}
