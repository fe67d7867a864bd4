package domain

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OpenRatio is the entry signal: the percentage premium of the swap bid over
// the spot ask. Positive when shorting the swap and buying spot is
// profitable before fees.
//
//	open_ratio = 100 × (swap_bid − spot_ask) / spot_ask
func OpenRatio(swapBid, spotAsk decimal.Decimal) decimal.Decimal {
	if !spotAsk.IsPositive() {
		return decimal.Zero
	}
	return hundred.Mul(swapBid.Sub(spotAsk)).Div(spotAsk)
}

// CloseRatio is the exit signal: the percentage premium of the spot bid over
// the swap ask.
//
//	close_ratio = 100 × (spot_bid − swap_ask) / swap_ask
func CloseRatio(spotBid, swapAsk decimal.Decimal) decimal.Decimal {
	if !swapAsk.IsPositive() {
		return decimal.Zero
	}
	return hundred.Mul(spotBid.Sub(swapAsk)).Div(swapAsk)
}

// Extrema tracks the running minimum and maximum of an observed series.
type Extrema struct {
	Min decimal.Decimal
	Max decimal.Decimal
	set bool
}

// Observe folds one value into the extrema.
func (e *Extrema) Observe(v decimal.Decimal) {
	if !e.set {
		e.Min, e.Max, e.set = v, v, true
		return
	}
	if v.LessThan(e.Min) {
		e.Min = v
	}
	if v.GreaterThan(e.Max) {
		e.Max = v
	}
}

// Seen reports whether any value was observed.
func (e *Extrema) Seen() bool {
	return e.set
}
