package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookLevel is one price level of an order book side.
type BookLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

// BookSnapshot is a top-of-book depth snapshot as delivered by a venue
// stream. Bids sort best (highest) first, asks best (lowest) first.
type BookSnapshot struct {
	Venue      Venue
	Symbol     string
	Bids       []BookLevel
	Asks       []BookLevel
	UpdateID   int64
	ReceivedAt time.Time
}

// BalanceUpdate carries the free balances of one venue after a change.
// Only assets touched by the update are present.
type BalanceUpdate struct {
	Venue Venue
	Free  map[string]decimal.Decimal
}

// PricePoint is one last-trade price observation with its timestamp, used
// when converting fees charged in a third asset.
type PricePoint struct {
	Symbol string
	Price  decimal.Decimal
	At     time.Time
}
