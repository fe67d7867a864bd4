// Package ui provides the Bubble Tea TUI for the basis arbitrage engine.
package ui

import (
	"time"

	"basisarb/business/trading/domain"

	"github.com/shopspring/decimal"
)

// Message types for TUI updates

// PairStatusMsg is sent on every priced tick of a monitored pair.
type PairStatusMsg struct {
	Pair       string
	OpenRatio  decimal.Decimal
	CloseRatio decimal.Decimal
	Extrema    domain.Extrema
}

// DealMsg is sent when a deal changes stage or is marked to market.
type DealMsg struct {
	Deal *domain.Deal
	PnL  *domain.PnL
}

// BalanceMsg is sent when a venue balance snapshot changes.
type BalanceMsg struct {
	Venue     string
	Free      decimal.Decimal
	MaxVolume decimal.Decimal
}

// ConnectionStatusMsg is sent when a venue connection changes state.
type ConnectionStatusMsg struct {
	Name      string
	Connected bool
	Latency   time.Duration
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}
