// Package app contains the trading application services: signal engines,
// the two-leg executor, and the PnL monitor.
package app

import (
	"context"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/business/trading/domain"

	"github.com/shopspring/decimal"
)

// Ledger is the durable store of deals. Mutations persist before they are
// visible in memory; persistence failures propagate, never get swallowed.
type Ledger interface {
	// Put stores a deal under its pair key. Fails with a full-ledger error
	// when adding a new key would exceed the configured maximum.
	Put(deal *domain.Deal) error
	// Remove deletes the deal for a pair key; removing an absent key is a
	// no-op.
	Remove(pairKey string) error
	Get(pairKey string) (*domain.Deal, bool)
	Len() int
	All() []*domain.Deal
}

// Journal is the append-only audit trail: one file per order or failure
// event, partitioned by date, never read back by the engine.
type Journal interface {
	RecordOrder(ctx context.Context, pairKey string, event string, order exdomain.OrderResult)
	RecordFailure(ctx context.Context, pairKey string, event string, details map[string]any)
}

// Reporter is the one-way display sink; the engine never reads from it.
type Reporter interface {
	PairStatus(pairKey string, openRatio, closeRatio decimal.Decimal, extrema domain.Extrema)
	DealUpdate(deal *domain.Deal, pnl *domain.PnL)
}

// OrderPlacer is the slice of the exchange gateway the executor consumes.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, req exdomain.OrderRequest) (exdomain.OrderResult, error)
	FetchBalance(ctx context.Context, venue exdomain.Venue) (map[string]decimal.Decimal, error)
	LastPrice(ctx context.Context, symbol string) (exdomain.PricePoint, error)
}
