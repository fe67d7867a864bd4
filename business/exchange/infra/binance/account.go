package binance

import (
	"context"
	"time"

	"basisarb/business/exchange/domain"
	"basisarb/internal/apperror"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// FetchBalance implements Gateway.
func (a *Adapter) FetchBalance(ctx context.Context, venue domain.Venue) (map[string]decimal.Decimal, error) {
	switch venue {
	case domain.VenueSpot:
		out, err := a.guarded(ctx, func() (any, error) {
			return a.spot.NewGetAccountService().Do(ctx)
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeBalanceUnavailable,
				apperror.WithContext("spot account"))
		}
		account := out.(*binance.Account)
		free := make(map[string]decimal.Decimal, len(account.Balances))
		for _, b := range account.Balances {
			amount := parseDecimal(b.Free)
			if amount.IsPositive() {
				free[b.Asset] = amount
			}
		}
		return free, nil

	case domain.VenueSwap:
		out, err := a.guarded(ctx, func() (any, error) {
			return a.fut.NewGetBalanceService().Do(ctx)
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeBalanceUnavailable,
				apperror.WithContext("futures balance"))
		}
		balances := out.([]*futures.Balance)
		free := make(map[string]decimal.Decimal, len(balances))
		for _, b := range balances {
			amount := parseDecimal(b.AvailableBalance)
			if amount.IsPositive() {
				free[b.Asset] = amount
			}
		}
		return free, nil

	default:
		return nil, apperror.New(apperror.CodeBalanceUnavailable,
			apperror.WithContextf("unknown venue %q", venue))
	}
}

// WatchBalance implements Gateway. It opens the venue's user-data stream and
// forwards account updates until ctx is cancelled or the stream drops, then
// closes the channel. Listen keys are refreshed on the venue's 30-minute
// keepalive schedule.
func (a *Adapter) WatchBalance(ctx context.Context, venue domain.Venue) (<-chan domain.BalanceUpdate, error) {
	switch venue {
	case domain.VenueSpot:
		return a.watchSpotBalance(ctx)
	case domain.VenueSwap:
		return a.watchSwapBalance(ctx)
	default:
		return nil, apperror.New(apperror.CodeBalanceUnavailable,
			apperror.WithContextf("unknown venue %q", venue))
	}
}

func (a *Adapter) watchSpotBalance(ctx context.Context) (<-chan domain.BalanceUpdate, error) {
	listenKey, err := a.spot.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContext("spot listen key"))
	}

	updates := make(chan domain.BalanceUpdate, 16)
	handler := func(event *binance.WsUserDataEvent) {
		if event.Event != binance.UserDataEventTypeOutboundAccountPosition {
			return
		}
		free := make(map[string]decimal.Decimal, len(event.AccountUpdate.WsAccountUpdates))
		for _, u := range event.AccountUpdate.WsAccountUpdates {
			free[u.Asset] = parseDecimal(u.Free)
		}
		select {
		case updates <- domain.BalanceUpdate{Venue: domain.VenueSpot, Free: free}:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		a.log.Warn(ctx, "spot user stream error", "error", err)
	}

	doneC, stopC, err := binance.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		close(updates)
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContext("spot user stream"))
	}

	go func() {
		defer close(updates)
		keepalive := time.NewTicker(30 * time.Minute)
		defer keepalive.Stop()
		for {
			select {
			case <-ctx.Done():
				close(stopC)
				return
			case <-doneC:
				return
			case <-keepalive.C:
				if err := a.spot.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
					a.log.Warn(ctx, "spot listen key keepalive failed", "error", err)
				}
			}
		}
	}()
	return updates, nil
}

func (a *Adapter) watchSwapBalance(ctx context.Context) (<-chan domain.BalanceUpdate, error) {
	listenKey, err := a.fut.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContext("futures listen key"))
	}

	updates := make(chan domain.BalanceUpdate, 16)
	handler := func(event *futures.WsUserDataEvent) {
		if event.Event != futures.UserDataEventTypeAccountUpdate {
			return
		}
		free := make(map[string]decimal.Decimal, len(event.AccountUpdate.Balances))
		for _, b := range event.AccountUpdate.Balances {
			free[b.Asset] = parseDecimal(b.CrossWalletBalance)
		}
		select {
		case updates <- domain.BalanceUpdate{Venue: domain.VenueSwap, Free: free}:
		case <-ctx.Done():
		}
	}
	errHandler := func(err error) {
		a.log.Warn(ctx, "futures user stream error", "error", err)
	}

	doneC, stopC, err := futures.WsUserDataServe(listenKey, handler, errHandler)
	if err != nil {
		close(updates)
		return nil, apperror.Wrap(err, apperror.CodeGatewayConnectionFailed,
			apperror.WithContext("futures user stream"))
	}

	go func() {
		defer close(updates)
		keepalive := time.NewTicker(30 * time.Minute)
		defer keepalive.Stop()
		for {
			select {
			case <-ctx.Done():
				close(stopC)
				return
			case <-doneC:
				return
			case <-keepalive.C:
				if err := a.fut.NewKeepaliveUserStreamService().ListenKey(listenKey).Do(ctx); err != nil {
					a.log.Warn(ctx, "futures listen key keepalive failed", "error", err)
				}
			}
		}
	}()
	return updates, nil
}

// FetchPositions implements Gateway.
func (a *Adapter) FetchPositions(ctx context.Context, symbols []string) ([]domain.Position, error) {
	out, err := a.guarded(ctx, func() (any, error) {
		return a.fut.NewGetPositionRiskService().Do(ctx)
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContext("position risk"))
	}
	risks := out.([]*futures.PositionRisk)

	wanted := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		wanted[s] = true
	}

	positions := make([]domain.Position, 0, len(symbols))
	for _, r := range risks {
		if len(wanted) > 0 && !wanted[r.Symbol] {
			continue
		}
		amt := parseDecimal(r.PositionAmt)
		if amt.IsZero() {
			continue
		}
		side := domain.SideBuy
		if amt.IsNegative() {
			side = domain.SideSell
			amt = amt.Neg()
		}
		positions = append(positions, domain.Position{
			Symbol:     r.Symbol,
			Contracts:  amt,
			EntryPrice: parseDecimal(r.EntryPrice),
			Side:       side,
		})
	}
	return positions, nil
}
