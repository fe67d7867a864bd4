// Package domain contains order-book types and the average-price estimator
// for the market-data context.
package domain

import (
	"time"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/apperror"

	"github.com/shopspring/decimal"
)

// Level is one price level of a book side.
type Level struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook is a validated depth snapshot for one venue symbol. It is
// replaced wholesale on every tick, never mutated in place.
type OrderBook struct {
	Venue      exdomain.Venue
	Symbol     string
	Bids       []Level
	Asks       []Level
	UpdateID   int64
	ReceivedAt time.Time
}

// FromSnapshot validates a raw gateway snapshot into an OrderBook. A book
// with no levels on either side, a crossed top of book, or a non-positive
// price is rejected.
func FromSnapshot(snap exdomain.BookSnapshot) (*OrderBook, error) {
	if len(snap.Bids) == 0 && len(snap.Asks) == 0 {
		return nil, apperror.New(apperror.CodeInvalidOrderBook,
			apperror.WithContextf("%s %s: empty book", snap.Venue, snap.Symbol))
	}

	book := &OrderBook{
		Venue:      snap.Venue,
		Symbol:     snap.Symbol,
		Bids:       make([]Level, 0, len(snap.Bids)),
		Asks:       make([]Level, 0, len(snap.Asks)),
		UpdateID:   snap.UpdateID,
		ReceivedAt: snap.ReceivedAt,
	}
	for _, l := range snap.Bids {
		if !l.Price.IsPositive() || l.Amount.IsNegative() {
			return nil, apperror.New(apperror.CodeInvalidOrderBook,
				apperror.WithContextf("%s %s: bad bid level %s@%s", snap.Venue, snap.Symbol, l.Amount, l.Price))
		}
		book.Bids = append(book.Bids, Level{Price: l.Price, Amount: l.Amount})
	}
	for _, l := range snap.Asks {
		if !l.Price.IsPositive() || l.Amount.IsNegative() {
			return nil, apperror.New(apperror.CodeInvalidOrderBook,
				apperror.WithContextf("%s %s: bad ask level %s@%s", snap.Venue, snap.Symbol, l.Amount, l.Price))
		}
		book.Asks = append(book.Asks, Level{Price: l.Price, Amount: l.Amount})
	}

	if len(book.Bids) > 0 && len(book.Asks) > 0 &&
		book.Bids[0].Price.GreaterThanOrEqual(book.Asks[0].Price) {
		return nil, apperror.New(apperror.CodeInvalidOrderBook,
			apperror.WithContextf("%s %s: crossed book bid=%s ask=%s",
				snap.Venue, snap.Symbol, book.Bids[0].Price, book.Asks[0].Price))
	}
	return book, nil
}

// Equal reports whether two books carry identical levels. Used for tick
// suppression; identity fields and timestamps are ignored.
func (b *OrderBook) Equal(other *OrderBook) bool {
	if other == nil {
		return false
	}
	return levelsEqual(b.Bids, other.Bids) && levelsEqual(b.Asks, other.Asks)
}

func levelsEqual(a, b []Level) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Price.Equal(b[i].Price) || !a[i].Amount.Equal(b[i].Amount) {
			return false
		}
	}
	return true
}

// Quote is the priced output of one book tick: volume-weighted average fill
// prices for the configured notional on both sides.
type Quote struct {
	Venue      exdomain.Venue
	Symbol     string
	AvgBid     decimal.Decimal
	AvgAsk     decimal.Decimal
	ReceivedAt time.Time
}
