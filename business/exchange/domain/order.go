package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the compensating direction.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the venue order type.
type OrderType string

const (
	TypeLimit  OrderType = "limit"
	TypeMarket OrderType = "market"
)

// OrderStatus is the normalized terminal-or-not state of an order.
type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
)

// Closed reports whether the order can no longer fill.
func (s OrderStatus) Closed() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// OrderRequest describes one order to be placed on a venue. Amount is in base
// units on spot and in contracts on the swap venue. Price is ignored for
// market orders.
type OrderRequest struct {
	Venue      Venue
	Symbol     string
	Type       OrderType
	Side       Side
	Amount     decimal.Decimal
	Price      decimal.Decimal
	ReduceOnly bool
}

// Fee is one fee line charged on an execution, in the asset the venue chose
// to charge it in.
type Fee struct {
	Asset  string
	Amount decimal.Decimal
}

// OrderResult is the normalized execution report for a placed order.
type OrderResult struct {
	ID       string
	Venue    Venue
	Symbol   string
	Side     Side
	Status   OrderStatus
	Average  decimal.Decimal
	Filled   decimal.Decimal
	Amount   decimal.Decimal
	Cost     decimal.Decimal
	Fees     []Fee
	PlacedAt time.Time
}

// Position is one open derivatives position.
type Position struct {
	Symbol     string
	Contracts  decimal.Decimal
	EntryPrice decimal.Decimal
	Side       Side
}
