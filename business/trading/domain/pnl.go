package domain

import (
	"github.com/shopspring/decimal"
)

// PnL is the marked-to-market outcome of an open deal at current quotes.
type PnL struct {
	Spot  decimal.Decimal
	Swap  decimal.Decimal
	Gross decimal.Decimal
	Fees  decimal.Decimal
	Net   decimal.Decimal
	ROI   decimal.Decimal
}

// ComputePnL marks an open position against the current spot bid and swap
// ask. Open fees are doubled to account for the symmetric close.
//
//	pnl_spot = (spot_bid_now − open_spot_avg) × open_spot_amount
//	pnl_swap = (open_swap_avg − swap_ask_now) × open_swap_contracts × contract_size
//	fees     = 2 × (open_spot_fee + open_swap_fee)
func ComputePnL(open OpenState, spotBidNow, swapAskNow decimal.Decimal) PnL {
	pnlSpot := spotBidNow.Sub(open.Spot.AvgPrice).Mul(open.Spot.Amount)
	pnlSwap := open.Swap.AvgPrice.Sub(swapAskNow).
		Mul(open.Swap.Amount).
		Mul(open.ContractSize)

	gross := pnlSpot.Add(pnlSwap)
	fees := open.Spot.Fee.Add(open.Swap.Fee).Mul(decimal.NewFromInt(2))
	net := gross.Sub(fees)

	roi := decimal.Zero
	if invested := open.Invested(); invested.IsPositive() {
		roi = net.Div(invested).Mul(hundred)
	}

	return PnL{
		Spot:  pnlSpot,
		Swap:  pnlSwap,
		Gross: gross,
		Fees:  fees,
		Net:   net,
		ROI:   roi,
	}
}

// CloseRule is one row of the close-decision table: it holds when the open
// ratio has dropped to or below its ceiling and the close ratio has risen to
// or above its floor.
type CloseRule struct {
	OpenRatioBelow  decimal.Decimal
	CloseRatioAbove decimal.Decimal
}

// Satisfied evaluates the rule against current ratios.
func (r CloseRule) Satisfied(openRatio, closeRatio decimal.Decimal) bool {
	return openRatio.LessThanOrEqual(r.OpenRatioBelow) &&
		closeRatio.GreaterThanOrEqual(r.CloseRatioAbove)
}

// ShouldClose reports whether any rule in the table holds. Rules are
// independent; the first satisfied one decides.
func ShouldClose(rules []CloseRule, openRatio, closeRatio decimal.Decimal) bool {
	for _, rule := range rules {
		if rule.Satisfied(openRatio, closeRatio) {
			return true
		}
	}
	return false
}
