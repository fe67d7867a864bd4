package binance

import (
	"context"
	"strconv"
	"time"

	"basisarb/business/exchange/domain"
	"basisarb/internal/apperror"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

// PlaceOrder implements Gateway. Orders bypass the circuit breaker: the
// execution layer owns retry and compensation decisions and must see every
// venue response.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return domain.OrderResult{}, apperror.Wrap(err, apperror.CodeGatewayRateLimited)
	}
	switch req.Venue {
	case domain.VenueSpot:
		return a.placeSpotOrder(ctx, req)
	case domain.VenueSwap:
		return a.placeSwapOrder(ctx, req)
	default:
		return domain.OrderResult{}, apperror.New(apperror.CodeGatewayAPIError,
			apperror.WithContextf("unknown venue %q", req.Venue))
	}
}

func (a *Adapter) placeSpotOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	svc := a.spot.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(spotSide(req.Side)).
		Quantity(req.Amount.String())

	if req.Type == domain.TypeLimit {
		svc = svc.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(req.Price.String())
	} else {
		svc = svc.Type(binance.OrderTypeMarket)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return domain.OrderResult{}, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("spot %s %s %s", req.Side, req.Amount, req.Symbol))
	}

	result := domain.OrderResult{
		ID:       strconv.FormatInt(resp.OrderID, 10),
		Venue:    domain.VenueSpot,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Status:   normalizeStatus(string(resp.Status)),
		Filled:   parseDecimal(resp.ExecutedQuantity),
		Amount:   req.Amount,
		Cost:     parseDecimal(resp.CummulativeQuoteQuantity),
		PlacedAt: time.UnixMilli(resp.TransactTime),
	}
	if result.Filled.IsPositive() {
		result.Average = result.Cost.Div(result.Filled)
	}
	for _, fill := range resp.Fills {
		fee := parseDecimal(fill.Commission)
		if fee.IsZero() {
			continue
		}
		result.Fees = append(result.Fees, domain.Fee{
			Asset:  fill.CommissionAsset,
			Amount: fee,
		})
	}
	return result, nil
}

func (a *Adapter) placeSwapOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	svc := a.fut.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(swapSide(req.Side)).
		Quantity(req.Amount.String())

	if req.Type == domain.TypeLimit {
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(req.Price.String())
	} else {
		svc = svc.Type(futures.OrderTypeMarket)
	}
	if req.ReduceOnly {
		svc = svc.ReduceOnly(true)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return domain.OrderResult{}, apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContextf("swap %s %s %s", req.Side, req.Amount, req.Symbol))
	}

	result := domain.OrderResult{
		ID:       strconv.FormatInt(resp.OrderID, 10),
		Venue:    domain.VenueSwap,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Status:   normalizeStatus(string(resp.Status)),
		Average:  parseDecimal(resp.AvgPrice),
		Filled:   parseDecimal(resp.ExecutedQuantity),
		Amount:   req.Amount,
		Cost:     parseDecimal(resp.CumQuote),
		PlacedAt: time.UnixMilli(resp.UpdateTime),
	}

	// The create response for market orders often races the match engine;
	// poll until the order reaches a terminal status.
	if req.Type == domain.TypeMarket && !result.Status.Closed() {
		final, err := a.waitSwapOrder(ctx, req.Symbol, resp.OrderID)
		if err != nil {
			return result, err
		}
		result.Status = normalizeStatus(string(final.Status))
		result.Average = parseDecimal(final.AvgPrice)
		result.Filled = parseDecimal(final.ExecutedQuantity)
		result.Cost = parseDecimal(final.CumQuote)
	}

	if fees, err := a.swapOrderFees(ctx, req.Symbol, resp.OrderID); err != nil {
		a.log.Warn(ctx, "fee lookup failed, result carries no fees",
			"symbol", req.Symbol, "order_id", resp.OrderID, "error", err)
	} else {
		result.Fees = fees
	}
	return result, nil
}

func (a *Adapter) waitSwapOrder(ctx context.Context, symbol string, orderID int64) (*futures.Order, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		order, err := a.fut.NewGetOrderService().
			Symbol(symbol).
			OrderID(orderID).
			Do(ctx)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeGatewayAPIError,
				apperror.WithContextf("poll order %d %s", orderID, symbol))
		}
		if normalizeStatus(string(order.Status)).Closed() {
			return order, nil
		}
		select {
		case <-ctx.Done():
			return nil, apperror.Wrap(ctx.Err(), apperror.CodeGatewayAPIError,
				apperror.WithContextf("poll order %d %s", orderID, symbol))
		case <-ticker.C:
		}
	}
}

// swapOrderFees sums the commissions of the trades that filled one order,
// grouped by commission asset.
func (a *Adapter) swapOrderFees(ctx context.Context, symbol string, orderID int64) ([]domain.Fee, error) {
	trades, err := a.fut.NewListAccountTradeService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	byAsset := map[string]decimal.Decimal{}
	for _, t := range trades {
		byAsset[t.CommissionAsset] = byAsset[t.CommissionAsset].Add(parseDecimal(t.Commission))
	}
	fees := make([]domain.Fee, 0, len(byAsset))
	for asset, amount := range byAsset {
		if amount.IsZero() {
			continue
		}
		fees = append(fees, domain.Fee{Asset: asset, Amount: amount})
	}
	return fees, nil
}

func spotSide(s domain.Side) binance.SideType {
	if s == domain.SideBuy {
		return binance.SideTypeBuy
	}
	return binance.SideTypeSell
}

func swapSide(s domain.Side) futures.SideType {
	if s == domain.SideBuy {
		return futures.SideTypeBuy
	}
	return futures.SideTypeSell
}

func normalizeStatus(s string) domain.OrderStatus {
	switch s {
	case "NEW":
		return domain.StatusNew
	case "PARTIALLY_FILLED":
		return domain.StatusPartiallyFilled
	case "FILLED":
		return domain.StatusFilled
	case "CANCELED":
		return domain.StatusCanceled
	case "REJECTED":
		return domain.StatusRejected
	case "EXPIRED":
		return domain.StatusExpired
	default:
		return domain.OrderStatus(s)
	}
}
