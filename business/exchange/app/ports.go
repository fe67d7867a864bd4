// Package app defines the gateway port for the exchange context.
package app

import (
	"context"

	"basisarb/business/exchange/domain"

	"github.com/shopspring/decimal"
)

// Gateway is the single port through which the rest of the system talks to
// the exchange. One implementation covers both venues; every call names the
// venue it addresses.
type Gateway interface {
	// LoadInstruments fetches and normalizes metadata for all markets of the
	// given venue, including inactive ones.
	LoadInstruments(ctx context.Context, venue domain.Venue) ([]domain.Instrument, error)

	// WatchOrderBook opens a depth stream for the symbol and delivers
	// snapshots until ctx is cancelled or the stream fails. The channel is
	// closed on either; a stream failure is reported through the returned
	// error function after close.
	WatchOrderBook(ctx context.Context, venue domain.Venue, symbol string) (<-chan domain.BookSnapshot, error)

	// FetchBalance returns the free balances of the venue.
	FetchBalance(ctx context.Context, venue domain.Venue) (map[string]decimal.Decimal, error)

	// WatchBalance streams balance changes for the venue. The channel closes
	// when ctx is cancelled or the user-data stream drops.
	WatchBalance(ctx context.Context, venue domain.Venue) (<-chan domain.BalanceUpdate, error)

	// PlaceOrder submits one order and returns its execution report. Market
	// orders block until the venue reports a terminal status.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error)

	// FetchPositions returns the open derivatives positions for the given
	// symbols on the swap venue.
	FetchPositions(ctx context.Context, symbols []string) ([]domain.Position, error)

	// SetLeverage configures the leverage multiplier for a swap symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int) error

	// SetMarginMode configures cross or isolated margin for a swap symbol.
	SetMarginMode(ctx context.Context, symbol string, mode string) error

	// LastPrice returns the most recent trade price of a symbol on the spot
	// venue with the time it was observed, used for fee conversion.
	LastPrice(ctx context.Context, symbol string) (domain.PricePoint, error)
}
