package binance

import (
	"context"

	"basisarb/business/exchange/domain"
	"basisarb/internal/apperror"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// Default taker fees applied when the account has no overrides; Binance does
// not expose per-symbol fees in exchange info.
var (
	defaultSpotTakerFee = decimal.NewFromFloat(0.001)
	defaultSwapTakerFee = decimal.NewFromFloat(0.0005)
)

// LoadInstruments implements Gateway.
func (a *Adapter) LoadInstruments(ctx context.Context, venue domain.Venue) ([]domain.Instrument, error) {
	switch venue {
	case domain.VenueSpot:
		return a.loadSpotInstruments(ctx)
	case domain.VenueSwap:
		return a.loadSwapInstruments(ctx)
	default:
		return nil, apperror.New(apperror.CodeGatewayAPIError,
			apperror.WithContextf("unknown venue %q", venue))
	}
}

func (a *Adapter) loadSpotInstruments(ctx context.Context) ([]domain.Instrument, error) {
	out, err := a.guarded(ctx, func() (any, error) {
		return a.spot.NewExchangeInfoService().Do(ctx)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContext("spot exchange info"))
	}
	info := out.(*binance.ExchangeInfo)

	instruments := make([]domain.Instrument, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		inst := domain.Instrument{
			Venue:        domain.VenueSpot,
			Symbol:       sym.Symbol,
			Kind:         domain.KindSpot,
			Base:         sym.BaseAsset,
			Quote:        sym.QuoteAsset,
			Active:       sym.Status == "TRADING",
			ContractSize: decimal.NewFromInt(1),
			TakerFee:     defaultSpotTakerFee,
		}
		if f := sym.LotSizeFilter(); f != nil {
			inst.AmountStep = parseDecimal(f.StepSize)
			inst.MinAmount = parseDecimal(f.MinQuantity)
		}
		if f := sym.PriceFilter(); f != nil {
			inst.PriceStep = parseDecimal(f.TickSize)
		}
		if f := sym.NotionalFilter(); f != nil {
			inst.MinCost = parseDecimal(f.MinNotional)
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

func (a *Adapter) loadSwapInstruments(ctx context.Context) ([]domain.Instrument, error) {
	out, err := a.guarded(ctx, func() (any, error) {
		return a.fut.NewExchangeInfoService().Do(ctx)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContext("futures exchange info"))
	}
	info := out.(*futures.ExchangeInfo)

	instruments := make([]domain.Instrument, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		kind := domain.KindFuture
		if sym.ContractType == "PERPETUAL" {
			kind = domain.KindSwap
		}
		inst := domain.Instrument{
			Venue:  domain.VenueSwap,
			Symbol: sym.Symbol,
			Kind:   kind,
			Base:   sym.BaseAsset,
			Quote:  sym.QuoteAsset,
			Settle: sym.MarginAsset,
			// USD-M contracts settle in the quote asset.
			Linear:       sym.MarginAsset == sym.QuoteAsset,
			Active:       sym.Status == "TRADING",
			ContractSize: decimal.NewFromInt(1),
			TakerFee:     defaultSwapTakerFee,
		}
		if f := sym.LotSizeFilter(); f != nil {
			inst.AmountStep = parseDecimal(f.StepSize)
			inst.MinAmount = parseDecimal(f.MinQuantity)
		}
		if f := sym.PriceFilter(); f != nil {
			inst.PriceStep = parseDecimal(f.TickSize)
		}
		if f := sym.MinNotionalFilter(); f != nil {
			inst.MinCost = parseDecimal(f.Notional)
		}
		instruments = append(instruments, inst)
	}
	return instruments, nil
}

// parseDecimal converts a venue numeric string, returning zero on malformed
// input so a single bad filter does not reject the whole instrument list.
func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
