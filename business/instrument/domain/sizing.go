package domain

import (
	"basisarb/internal/apperror"
	"basisarb/internal/money"

	"github.com/shopspring/decimal"
)

// Sizing is the matched order size for both legs of one deal. The swap leg
// is the anchor: the spot amount is derived from the quantized contract
// count, never the reverse.
type Sizing struct {
	// SpotAmount is the base quantity bought on the spot leg.
	SpotAmount decimal.Decimal
	// SwapContracts is the contract count sold short on the swap leg.
	SwapContracts decimal.Decimal
	// SpotCost / SwapCost are the leg notionals at the given prices.
	SpotCost decimal.Decimal
	SwapCost decimal.Decimal
}

// SizeLegs computes matched leg sizes for the given per-leg notional targets
// and live prices. The raw coin quantity is the minimum both notionals
// afford; contracts quantize down to the swap step and the spot amount
// quantizes down from the contract total, re-anchoring until
// spot_amount == swap_contracts × contract_size holds exactly. Each result
// must clear the leg's own minimum amount and minimum cost before any order
// is placed.
func SizeLegs(pair Pair, spotNotional, swapNotional, spotPrice, swapPrice decimal.Decimal) (Sizing, error) {
	if !spotPrice.IsPositive() || !swapPrice.IsPositive() {
		return Sizing{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("non-positive price spot=%s swap=%s", spotPrice, swapPrice))
	}
	if !spotNotional.IsPositive() || !swapNotional.IsPositive() {
		return Sizing{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("non-positive notional spot=%s swap=%s", spotNotional, swapNotional))
	}

	coinQty := decimal.Min(spotNotional.Div(spotPrice), swapNotional.Div(swapPrice))

	size := pair.Swap.ContractSize
	contracts := money.StepDown(coinQty.Div(size), pair.Swap.AmountStep)
	spotAmount := money.StepDown(contracts.Mul(size), pair.Spot.AmountStep)

	// Re-anchor until the legs agree exactly; with decimal step sizes this
	// settles after at most a few passes.
	for i := 0; i < 4 && !spotAmount.Equal(contracts.Mul(size)); i++ {
		contracts = money.StepDown(spotAmount.Div(size), pair.Swap.AmountStep)
		spotAmount = money.StepDown(contracts.Mul(size), pair.Spot.AmountStep)
	}
	if !spotAmount.Equal(contracts.Mul(size)) {
		return Sizing{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContextf("leg steps incompatible: spot=%s swap=%s size=%s",
				pair.Spot.AmountStep, pair.Swap.AmountStep, size))
	}

	sizing := Sizing{
		SpotAmount:    spotAmount,
		SwapContracts: contracts,
		SpotCost:      spotAmount.Mul(spotPrice),
		SwapCost:      contracts.Mul(size).Mul(swapPrice),
	}
	return sizing, sizing.validate(pair)
}

// validate enforces the four venue minimums, each with its own error so the
// operator sees exactly which limit blocked the deal.
func (s Sizing) validate(pair Pair) error {
	if s.SpotAmount.LessThan(pair.Spot.MinAmount) || !s.SpotAmount.IsPositive() {
		return apperror.New(apperror.CodeInsufficientSpotAmountFunds,
			apperror.WithContextf("spot amount %s < min %s", s.SpotAmount, pair.Spot.MinAmount))
	}
	if s.SpotCost.LessThan(pair.Spot.MinCost) {
		return apperror.New(apperror.CodeInsufficientSpotCostFunds,
			apperror.WithContextf("spot cost %s < min %s", s.SpotCost, pair.Spot.MinCost))
	}
	if s.SwapContracts.LessThan(pair.Swap.MinAmount) || !s.SwapContracts.IsPositive() {
		return apperror.New(apperror.CodeInsufficientSwapAmountFunds,
			apperror.WithContextf("swap contracts %s < min %s", s.SwapContracts, pair.Swap.MinAmount))
	}
	if s.SwapCost.LessThan(pair.Swap.MinCost) {
		return apperror.New(apperror.CodeInsufficientSwapCostFunds,
			apperror.WithContextf("swap cost %s < min %s", s.SwapCost, pair.Swap.MinCost))
	}
	return nil
}
