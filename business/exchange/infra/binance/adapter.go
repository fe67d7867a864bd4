// Package binance implements the exchange Gateway against Binance spot and
// USD-M futures.
package binance

import (
	"context"
	"errors"
	"time"

	"basisarb/business/exchange/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"
	"basisarb/internal/ratelimit"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// Config holds the adapter settings.
type Config struct {
	APIKey            string
	APISecret         string
	SpotWSURL         string
	FuturesWSURL      string
	SnapshotDepth     int
	RequestsPerMinute int
	ReadTimeout       time.Duration
}

// Adapter talks to Binance through the official REST SDK for trading and
// account state, and through raw depth streams for market data.
type Adapter struct {
	cfg     Config
	spot    *binance.Client
	fut     *futures.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker[any]
	log     logger.LoggerInterface
}

// NewAdapter builds the adapter. The circuit breaker guards read-side REST
// calls only; order placement bypasses it so the execution layer keeps full
// control over its own retries.
func NewAdapter(cfg Config, log logger.LoggerInterface) (*Adapter, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, apperror.New(apperror.CodeGatewayConnectionFailed,
			apperror.WithContext("api credentials missing"))
	}
	if cfg.SnapshotDepth <= 0 {
		cfg.SnapshotDepth = 20
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 1200
	}

	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "binance-rest",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn(context.Background(), "circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Adapter{
		cfg:     cfg,
		spot:    binance.NewClient(cfg.APIKey, cfg.APISecret),
		fut:     futures.NewClient(cfg.APIKey, cfg.APISecret),
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		breaker: breaker,
		log:     log,
	}, nil
}

// guarded runs fn behind the rate limiter and the read-side circuit breaker.
func (a *Adapter) guarded(ctx context.Context, fn func() (any, error)) (any, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeGatewayRateLimited)
	}
	out, err := a.breaker.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperror.Wrap(err, apperror.CodeGatewayAPIError,
				apperror.WithContext("rest circuit open"))
		}
		return nil, err
	}
	return out, nil
}

// LastPrice implements Gateway for the spot venue.
func (a *Adapter) LastPrice(ctx context.Context, symbol string) (domain.PricePoint, error) {
	out, err := a.guarded(ctx, func() (any, error) {
		return a.spot.NewListPricesService().Symbol(symbol).Do(ctx)
	})
	if err != nil {
		return domain.PricePoint{}, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("last price %s", symbol))
	}
	prices := out.([]*binance.SymbolPrice)
	if len(prices) == 0 {
		return domain.PricePoint{}, apperror.New(apperror.CodeGatewayAPIError,
			apperror.WithContextf("no price for %s", symbol))
	}
	p, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return domain.PricePoint{}, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("bad price %q for %s", prices[0].Price, symbol))
	}
	return domain.PricePoint{Symbol: symbol, Price: p, At: time.Now()}, nil
}

// SetLeverage implements Gateway.
func (a *Adapter) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeGatewayRateLimited)
	}
	_, err := a.fut.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("set leverage %s x%d", symbol, leverage))
	}
	return nil
}

// SetMarginMode implements Gateway. Binance rejects a no-op change with
// error -4046, which is treated as success.
func (a *Adapter) SetMarginMode(ctx context.Context, symbol string, mode string) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeGatewayRateLimited)
	}
	marginType := futures.MarginTypeCrossed
	if mode == "isolated" {
		marginType = futures.MarginTypeIsolated
	}
	err := a.fut.NewChangeMarginTypeService().
		Symbol(symbol).
		MarginType(marginType).
		Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == -4046 {
			return nil
		}
		return apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("set margin mode %s %s", symbol, mode))
	}
	return nil
}
