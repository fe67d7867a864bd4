package domain

import (
	"fmt"

	"basisarb/internal/apperror"
	"basisarb/internal/money"

	"github.com/shopspring/decimal"
)

// InsufficientLiquidityError reports that the book cannot absorb the
// requested notional. Missing is the unfilled remainder in quote currency.
type InsufficientLiquidityError struct {
	Requested decimal.Decimal
	Missing   decimal.Decimal
}

func (e *InsufficientLiquidityError) Error() string {
	return fmt.Sprintf("insufficient liquidity: requested %s, missing %s", e.Requested, e.Missing)
}

// BookSide selects which side of the book an estimate walks.
type BookSide int

const (
	// SideAsk prices a buy: walk asks from best (lowest).
	SideAsk BookSide = iota
	// SideBid prices a sell: walk bids from best (highest).
	SideBid
)

// AveragePrice computes the volume-weighted average fill price for spending
// the given notional against the ordered levels. Levels must start at the
// best price. The result is quantized to the maximum price precision seen
// among consumed levels, rounding up for ask-side estimates and down for
// bid-side estimates so the estimate never flatters the taker.
func AveragePrice(levels []Level, notional decimal.Decimal, side BookSide) (decimal.Decimal, error) {
	if !notional.IsPositive() {
		return decimal.Zero, apperror.New(apperror.CodeInvalidOrderBook,
			apperror.WithContextf("non-positive notional %s", notional))
	}
	if len(levels) == 0 {
		return decimal.Zero, apperror.New(apperror.CodeInvalidOrderBook,
			apperror.WithContext("no levels"))
	}

	remaining := notional
	filled := decimal.Zero
	maxPrecision := int32(0)

	for _, level := range levels {
		if !level.Price.IsPositive() {
			return decimal.Zero, apperror.New(apperror.CodeInvalidOrderBook,
				apperror.WithContextf("non-positive price %s", level.Price))
		}
		if level.Amount.IsNegative() {
			return decimal.Zero, apperror.New(apperror.CodeInvalidOrderBook,
				apperror.WithContextf("negative amount %s", level.Amount))
		}

		if p := money.Precision(level.Price); p > maxPrecision {
			maxPrecision = p
		}

		levelCost := level.Price.Mul(level.Amount)
		if levelCost.LessThanOrEqual(remaining) {
			filled = filled.Add(level.Amount)
			remaining = remaining.Sub(levelCost)
			if remaining.IsZero() {
				break
			}
			continue
		}

		// Partial fill of the last consumed level.
		filled = filled.Add(remaining.Div(level.Price))
		remaining = decimal.Zero
		break
	}

	if remaining.IsPositive() {
		return decimal.Zero, &InsufficientLiquidityError{
			Requested: notional,
			Missing:   remaining,
		}
	}

	average := notional.Div(filled)
	if side == SideAsk {
		return money.RoundUp(average, maxPrecision), nil
	}
	return money.RoundDown(average, maxPrecision), nil
}
