package domain

import (
	"testing"

	exdomain "basisarb/business/exchange/domain"

	"github.com/shopspring/decimal"
)

func spotInstrument(symbol, base string, active bool) exdomain.Instrument {
	return exdomain.Instrument{
		Venue:        exdomain.VenueSpot,
		Symbol:       symbol,
		Kind:         exdomain.KindSpot,
		Base:         base,
		Quote:        "USDT",
		Active:       active,
		ContractSize: decimal.NewFromInt(1),
		AmountStep:   decimal.RequireFromString("0.0001"),
		TakerFee:     decimal.RequireFromString("0.001"),
	}
}

func swapInstrument(symbol, base, settle string, linear, active bool) exdomain.Instrument {
	return exdomain.Instrument{
		Venue:        exdomain.VenueSwap,
		Symbol:       symbol,
		Kind:         exdomain.KindSwap,
		Base:         base,
		Quote:        "USDT",
		Settle:       settle,
		Linear:       linear,
		Active:       active,
		ContractSize: decimal.NewFromInt(1),
		AmountStep:   decimal.RequireFromString("0.001"),
		TakerFee:     decimal.RequireFromString("0.0005"),
	}
}

func TestBuildPairs(t *testing.T) {
	spots := []exdomain.Instrument{
		spotInstrument("BTCUSDT", "BTC", true),
		spotInstrument("ETHUSDT", "ETH", true),
		spotInstrument("XRPUSDT", "XRP", false), // inactive, excluded
	}
	swaps := []exdomain.Instrument{
		swapInstrument("BTCUSDT", "BTC", "USDT", true, true),
		swapInstrument("ETHUSD", "ETH", "ETH", false, true),  // inverse, excluded
		swapInstrument("XRPUSDT", "XRP", "USDT", true, true), // spot inactive
	}

	pairs := BuildPairs(spots, swaps, "USDT", nil)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	p := pairs[0]
	if p.Key != "BTCUSDT_BTCUSDT" {
		t.Errorf("key = %q", p.Key)
	}
	if !p.CombinedFee.Equal(decimal.RequireFromString("0.0015")) {
		t.Errorf("combined fee = %s, want 0.0015", p.CombinedFee)
	}
}

func TestBuildPairsBaseFilter(t *testing.T) {
	spots := []exdomain.Instrument{
		spotInstrument("BTCUSDT", "BTC", true),
		spotInstrument("ETHUSDT", "ETH", true),
	}
	swaps := []exdomain.Instrument{
		swapInstrument("BTCUSDT", "BTC", "USDT", true, true),
		swapInstrument("ETHUSDT", "ETH", "USDT", true, true),
	}

	pairs := BuildPairs(spots, swaps, "USDT", []string{"ETH"})
	if len(pairs) != 1 || pairs[0].Spot.Base != "ETH" {
		t.Fatalf("expected single ETH pair, got %v", pairs)
	}
}

func TestSelectTradable(t *testing.T) {
	instruments := []exdomain.Instrument{
		spotInstrument("BTCUSDT", "BTC", true),
		spotInstrument("ETHUSDT", "ETH", false),
		swapInstrument("BTCUSDT", "BTC", "USDT", true, true),
	}
	spots := SelectTradable(instruments, exdomain.KindSpot)
	if len(spots) != 1 || spots[0].Symbol != "BTCUSDT" {
		t.Fatalf("spots = %v", spots)
	}
}
