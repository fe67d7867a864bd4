// Package domain contains instrument classification, pairing and sizing for
// the instrument context.
package domain

import (
	exdomain "basisarb/business/exchange/domain"

	"github.com/shopspring/decimal"
)

// Pair links one spot market with one linear perpetual on the same base and
// quote asset. The key is stable across reloads.
type Pair struct {
	Key  string
	Spot exdomain.Instrument
	Swap exdomain.Instrument
	// CombinedFee is the sum of both legs' taker fees, applied per
	// round-trip side.
	CombinedFee decimal.Decimal
}

// PairKey builds the composite pair identifier.
func PairKey(spotSymbol, swapSymbol string) string {
	return spotSymbol + "_" + swapSymbol
}

// SelectTradable filters instruments to active markets of one kind.
func SelectTradable(instruments []exdomain.Instrument, kind exdomain.MarketKind) []exdomain.Instrument {
	out := make([]exdomain.Instrument, 0, len(instruments))
	for _, inst := range instruments {
		if inst.Kind != kind || !inst.Tradable() {
			continue
		}
		out = append(out, inst)
	}
	return out
}

// BuildPairs links spot and swap instruments sharing base and quote, where
// the swap is linear and settles in the configured quote asset. Inactive
// instruments never pair. baseAssets, when non-empty, restricts pairing to
// the listed bases.
func BuildPairs(spots, swaps []exdomain.Instrument, quoteAsset string, baseAssets []string) []Pair {
	wanted := make(map[string]bool, len(baseAssets))
	for _, b := range baseAssets {
		wanted[b] = true
	}

	spotByBase := make(map[string]exdomain.Instrument)
	for _, s := range SelectTradable(spots, exdomain.KindSpot) {
		if s.Quote != quoteAsset {
			continue
		}
		if len(wanted) > 0 && !wanted[s.Base] {
			continue
		}
		spotByBase[s.Base] = s
	}

	pairs := make([]Pair, 0, len(spotByBase))
	for _, swap := range SelectTradable(swaps, exdomain.KindSwap) {
		if swap.Quote != quoteAsset || !swap.Linear || swap.Settle != quoteAsset {
			continue
		}
		spot, ok := spotByBase[swap.Base]
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{
			Key:         PairKey(spot.Symbol, swap.Symbol),
			Spot:        spot,
			Swap:        swap,
			CombinedFee: spot.TakerFee.Add(swap.TakerFee),
		})
		// One pair per base asset.
		delete(spotByBase, swap.Base)
	}
	return pairs
}
