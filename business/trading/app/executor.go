package app

import (
	"context"
	"sync"
	"time"

	exdomain "basisarb/business/exchange/domain"
	instrdomain "basisarb/business/instrument/domain"
	"basisarb/business/trading/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"
	"basisarb/internal/money"
	"basisarb/internal/notify"

	"github.com/shopspring/decimal"
)

// ExecutorConfig tunes order placement and fee conversion.
type ExecutorConfig struct {
	// OrderRetries is the attempt budget per leg.
	OrderRetries int
	// RetryDelay is the fixed wait between attempts of one leg.
	RetryDelay time.Duration
	// LimitPremium is the fraction added to the spot ask for the opening
	// limit buy, making it fill like a market order.
	LimitPremium decimal.Decimal
	// SettleWait is the pause before reading balances after a fill.
	SettleWait time.Duration
	// FeePriceMaxAge caps the age of the price used to convert a fee paid
	// in a third asset.
	FeePriceMaxAge time.Duration
	// QuoteAsset is the currency fees and PnL are expressed in.
	QuoteAsset string
}

// Executor runs the two-leg saga: both legs launch together, outcomes are
// collected without short-circuiting, and a lone surviving leg is
// compensated with a market close. An in-flight operation always reaches a
// terminal outcome; outer cancellation is honored only between operations.
type Executor struct {
	cfg      ExecutorConfig
	gateway  OrderPlacer
	ledger   Ledger
	journal  Journal
	notifier *notify.Notifier
	log      logger.LoggerInterface
}

// NewExecutor builds the executor.
func NewExecutor(cfg ExecutorConfig, gateway OrderPlacer, ledger Ledger, journal Journal, notifier *notify.Notifier, log logger.LoggerInterface) *Executor {
	if cfg.OrderRetries <= 0 {
		cfg.OrderRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Executor{
		cfg:      cfg,
		gateway:  gateway,
		ledger:   ledger,
		journal:  journal,
		notifier: notifier,
		log:      log,
	}
}

type legOutcome struct {
	result exdomain.OrderResult
	err    error
}

// Open executes the two-leg entry: a spot limit buy priced to fill and a
// swap market sell, launched together. On success the deal is persisted
// before the in-memory commit. On a single-leg failure the surviving leg is
// closed and the leg error is returned; the ledger is left untouched.
func (e *Executor) Open(ctx context.Context, pair instrdomain.Pair, sizing instrdomain.Sizing, spotAsk, swapBid decimal.Decimal) (*domain.Deal, error) {
	// The operation must reach a terminal outcome even if the caller is
	// cancelled mid-flight; a half-open position is worse than a slow stop.
	opCtx := context.WithoutCancel(ctx)

	deal := domain.NewDeal(pair.Key, domain.SignalInputs{
		OpenRatio: domain.OpenRatio(swapBid, spotAsk),
		SpotAsk:   spotAsk,
		SwapBid:   swapBid,
		At:        time.Now().UTC(),
	})
	if err := deal.MarkOpening(); err != nil {
		return nil, err
	}

	limitPrice := money.StepDown(
		spotAsk.Mul(decimal.NewFromInt(1).Add(e.cfg.LimitPremium)),
		pair.Spot.PriceStep)

	spotReq := exdomain.OrderRequest{
		Venue:  exdomain.VenueSpot,
		Symbol: pair.Spot.Symbol,
		Type:   exdomain.TypeLimit,
		Side:   exdomain.SideBuy,
		Amount: sizing.SpotAmount,
		Price:  limitPrice,
	}
	swapReq := exdomain.OrderRequest{
		Venue:  exdomain.VenueSwap,
		Symbol: pair.Swap.Symbol,
		Type:   exdomain.TypeMarket,
		Side:   exdomain.SideSell,
		Amount: sizing.SwapContracts,
	}

	spot, swap := e.bothLegs(opCtx,
		spotReq, apperror.CodeOpenSpotOrderFailed,
		swapReq, apperror.CodeOpenSwapOrderFailed)

	switch {
	case spot.err == nil && swap.err == nil:
		open, feeErr := e.buildOpenState(opCtx, pair, spot.result, swap.result)
		if err := deal.MarkOpen(open); err != nil {
			return nil, err
		}
		if err := e.ledger.Put(deal); err != nil {
			// Persistence must not be swallowed; the operator has to
			// reconcile a live position against a ledger that refused it.
			e.alert(opCtx, "CRITICAL: position open but ledger write failed for "+pair.Key)
			return nil, err
		}
		e.journal.RecordOrder(opCtx, pair.Key, "open-spot", spot.result)
		e.journal.RecordOrder(opCtx, pair.Key, "open-swap", swap.result)
		if feeErr != nil {
			e.journal.RecordFailure(opCtx, pair.Key, "open-fee-unresolved", map[string]any{
				"error":      feeErr.Error(),
				"spot_order": spot.result.ID,
				"swap_order": swap.result.ID,
			})
			e.alert(opCtx, "CRITICAL: opened "+pair.Key+" but fee conversion failed, fee recorded as zero")
			e.log.Error(opCtx, "fee conversion failed on open, fee recorded as zero",
				"pair", pair.Key, "error", feeErr)
		}
		e.alert(opCtx, "opened "+pair.Key+" ratio "+deal.Signal.OpenRatio.StringFixed(4))
		return deal, nil

	case spot.err != nil && swap.err != nil:
		e.journal.RecordFailure(opCtx, pair.Key, "open-both-failed", map[string]any{
			"spot_error": spot.err.Error(),
			"swap_error": swap.err.Error(),
		})
		err := apperror.New(apperror.CodeDealOpenFailed,
			apperror.WithCause(spot.err),
			apperror.WithContextf("swap leg also failed: %v", swap.err))
		e.alert(opCtx, "open failed on both legs for "+pair.Key)
		return nil, err

	case spot.err == nil:
		// Spot filled, swap did not: unwind the spot buy.
		e.compensate(opCtx, pair.Key, exdomain.OrderRequest{
			Venue:  exdomain.VenueSpot,
			Symbol: pair.Spot.Symbol,
			Type:   exdomain.TypeMarket,
			Side:   exdomain.SideSell,
			Amount: spot.result.Filled,
		}, spot.result)
		e.journal.RecordFailure(opCtx, pair.Key, "open-swap-failed", map[string]any{
			"swap_error":  swap.err.Error(),
			"spot_order":  spot.result.ID,
			"spot_filled": spot.result.Filled.String(),
		})
		return nil, swap.err

	default:
		// Swap filled, spot did not: buy back the short.
		e.compensate(opCtx, pair.Key, exdomain.OrderRequest{
			Venue:      exdomain.VenueSwap,
			Symbol:     pair.Swap.Symbol,
			Type:       exdomain.TypeMarket,
			Side:       exdomain.SideBuy,
			Amount:     swap.result.Filled,
			ReduceOnly: true,
		}, swap.result)
		e.journal.RecordFailure(opCtx, pair.Key, "open-spot-failed", map[string]any{
			"spot_error":  spot.err.Error(),
			"swap_order":  swap.result.ID,
			"swap_filled": swap.result.Filled.String(),
		})
		return nil, spot.err
	}
}

// Close executes the two-leg exit: the spot leg sells the currently held
// free base balance (self-correcting for drift), the swap leg buys back the
// originally opened contract count reduce-only. Only a fully closed deal
// leaves the ledger. When exactly one leg closes, the closed leg is
// re-established so the hedge survives, and the deal stays at Closing for
// the next tick to retry; when both legs fail the hedge is still intact and
// the deal likewise stays.
func (e *Executor) Close(ctx context.Context, pair instrdomain.Pair, deal *domain.Deal) (*domain.Deal, error) {
	opCtx := context.WithoutCancel(ctx)

	if err := deal.MarkClosing(); err != nil {
		return nil, err
	}
	if err := e.ledger.Put(deal); err != nil {
		return nil, err
	}

	if e.cfg.SettleWait > 0 {
		time.Sleep(e.cfg.SettleWait)
	}
	spotAmount, err := e.freeSpotBase(opCtx, pair)
	if err != nil {
		return nil, err
	}

	spotReq := exdomain.OrderRequest{
		Venue:  exdomain.VenueSpot,
		Symbol: pair.Spot.Symbol,
		Type:   exdomain.TypeMarket,
		Side:   exdomain.SideSell,
		Amount: spotAmount,
	}
	swapReq := exdomain.OrderRequest{
		Venue:      exdomain.VenueSwap,
		Symbol:     pair.Swap.Symbol,
		Type:       exdomain.TypeMarket,
		Side:       exdomain.SideBuy,
		Amount:     deal.Open.Swap.Amount,
		ReduceOnly: true,
	}

	spot, swap := e.bothLegs(opCtx,
		spotReq, apperror.CodeCloseSpotOrderFailed,
		swapReq, apperror.CodeCloseSwapOrderFailed)

	switch {
	case spot.err == nil && swap.err == nil:
		closeState, feeErr := e.buildCloseState(opCtx, pair, deal.Open, spot.result, swap.result)
		if err := deal.MarkClosed(closeState); err != nil {
			return nil, err
		}
		if err := e.ledger.Remove(pair.Key); err != nil {
			e.alert(opCtx, "CRITICAL: ledger remove failed for "+pair.Key)
			e.log.Error(opCtx, "ledger remove failed", "pair", pair.Key, "error", err)
		}
		e.journal.RecordOrder(opCtx, pair.Key, "close-spot", spot.result)
		e.journal.RecordOrder(opCtx, pair.Key, "close-swap", swap.result)
		if feeErr != nil {
			e.journal.RecordFailure(opCtx, pair.Key, "close-fee-unresolved", map[string]any{
				"error":      feeErr.Error(),
				"spot_order": spot.result.ID,
				"swap_order": swap.result.ID,
			})
			e.alert(opCtx, "CRITICAL: closed "+pair.Key+" but fee conversion failed, fee recorded as zero")
			e.log.Error(opCtx, "fee conversion failed on close, fee recorded as zero",
				"pair", pair.Key, "error", feeErr)
		}
		e.alert(opCtx, "closed "+pair.Key+" net "+closeState.NetPnL.StringFixed(4)+" "+e.cfg.QuoteAsset)
		return deal, nil

	case spot.err != nil && swap.err != nil:
		// Neither exit executed, so the hedge is still in place. The deal
		// stays at Closing and the next tick retries.
		e.journal.RecordFailure(opCtx, pair.Key, "close-both-failed", map[string]any{
			"spot_error": spot.err.Error(),
			"swap_error": swap.err.Error(),
		})
		err := apperror.New(apperror.CodeDealCloseFailed,
			apperror.WithCause(spot.err),
			apperror.WithContextf("swap leg also failed: %v", swap.err))
		e.alert(opCtx, "CRITICAL: close failed on both legs for "+pair.Key+", will retry")
		return nil, err

	case spot.err == nil:
		// Base sold but the short remains: buy the base back so the hedge
		// is whole again, then let the next tick retry the exit.
		e.compensate(opCtx, pair.Key, exdomain.OrderRequest{
			Venue:  exdomain.VenueSpot,
			Symbol: pair.Spot.Symbol,
			Type:   exdomain.TypeMarket,
			Side:   exdomain.SideBuy,
			Amount: spot.result.Filled,
		}, spot.result)
		e.journal.RecordFailure(opCtx, pair.Key, "close-swap-failed", map[string]any{
			"swap_error": swap.err.Error(),
			"spot_order": spot.result.ID,
		})
		e.alert(opCtx, "CRITICAL: swap close failed for "+pair.Key+", spot leg re-established")
		return nil, swap.err

	default:
		// Short bought back but the base did not sell: re-open the short
		// for the bought-back quantity and retry the exit later.
		e.compensate(opCtx, pair.Key, exdomain.OrderRequest{
			Venue:  exdomain.VenueSwap,
			Symbol: pair.Swap.Symbol,
			Type:   exdomain.TypeMarket,
			Side:   exdomain.SideSell,
			Amount: swap.result.Filled,
		}, swap.result)
		e.journal.RecordFailure(opCtx, pair.Key, "close-spot-failed", map[string]any{
			"spot_error": spot.err.Error(),
			"swap_order": swap.result.ID,
		})
		e.alert(opCtx, "CRITICAL: spot close failed for "+pair.Key+", short re-established")
		return nil, spot.err
	}
}

// bothLegs launches both orders concurrently and waits for both outcomes.
func (e *Executor) bothLegs(ctx context.Context, first exdomain.OrderRequest, firstCode apperror.Code, second exdomain.OrderRequest, secondCode apperror.Code) (legOutcome, legOutcome) {
	var wg sync.WaitGroup
	var a, b legOutcome
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.result, a.err = e.placeWithRetry(ctx, first, firstCode)
	}()
	go func() {
		defer wg.Done()
		b.result, b.err = e.placeWithRetry(ctx, second, secondCode)
	}()
	wg.Wait()
	return a, b
}

// placeWithRetry submits one order with the leg's bounded retry budget and a
// fixed inter-attempt delay.
func (e *Executor) placeWithRetry(ctx context.Context, req exdomain.OrderRequest, code apperror.Code) (exdomain.OrderResult, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.OrderRetries; attempt++ {
		result, err := e.gateway.PlaceOrder(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		e.log.Warn(ctx, "order attempt failed",
			"venue", req.Venue, "symbol", req.Symbol, "side", req.Side,
			"attempt", attempt, "max", e.cfg.OrderRetries, "error", err)
		if attempt < e.cfg.OrderRetries {
			time.Sleep(e.cfg.RetryDelay)
		}
	}
	return exdomain.OrderResult{}, apperror.New(code,
		apperror.WithCause(lastErr),
		apperror.WithContextf("%s %s %s after %d attempts", req.Side, req.Amount, req.Symbol, e.cfg.OrderRetries))
}

// compensate market-closes a surviving leg. A zero filled quantity makes it
// a no-op. Failures are logged and alerted but never override the original
// leg error.
func (e *Executor) compensate(ctx context.Context, pairKey string, req exdomain.OrderRequest, survived exdomain.OrderResult) {
	if !survived.Filled.IsPositive() {
		return
	}
	req.Amount = survived.Filled
	if _, err := e.placeWithRetry(ctx, req, apperror.CodeCompensationFailed); err != nil {
		e.log.Error(ctx, "compensation failed, manual intervention required",
			"pair", pairKey, "venue", req.Venue, "symbol", req.Symbol,
			"amount", req.Amount, "error", err)
		e.alert(ctx, "CRITICAL: compensation failed for "+pairKey+", uncovered exposure on "+string(req.Venue))
		return
	}
	e.log.Info(ctx, "compensated surviving leg",
		"pair", pairKey, "venue", req.Venue, "amount", req.Amount)
}

// buildOpenState assembles the realized fills. A failed fee conversion is
// reported but never voids the state: both fills are live on the venues, so
// the caller must still commit the position (with the fee left at zero).
func (e *Executor) buildOpenState(ctx context.Context, pair instrdomain.Pair, spot, swap exdomain.OrderResult) (domain.OpenState, error) {
	spotFee, spotFeeErr := e.feeInQuote(ctx, spot.Fees)
	swapFee, swapFeeErr := e.feeInQuote(ctx, swap.Fees)
	feeErr := spotFeeErr
	if feeErr == nil {
		feeErr = swapFeeErr
	}
	return domain.OpenState{
		Spot: domain.LegFill{
			OrderID:  spot.ID,
			Symbol:   pair.Spot.Symbol,
			AvgPrice: spot.Average,
			Amount:   spot.Filled,
			Cost:     spot.Cost,
			Fee:      spotFee,
		},
		Swap: domain.LegFill{
			OrderID:  swap.ID,
			Symbol:   pair.Swap.Symbol,
			AvgPrice: swap.Average,
			Amount:   swap.Filled,
			Cost:     swap.Cost,
			Fee:      swapFee,
		},
		ContractSize: pair.Swap.ContractSize,
		OpenedAt:     time.Now().UTC(),
	}, feeErr
}

// buildCloseState mirrors buildOpenState: fee conversion failures are
// reported but the realized outcome is always assembled, since both exits
// already filled.
func (e *Executor) buildCloseState(ctx context.Context, pair instrdomain.Pair, open *domain.OpenState, spot, swap exdomain.OrderResult) (domain.CloseState, error) {
	spotFee, spotFeeErr := e.feeInQuote(ctx, spot.Fees)
	swapFee, swapFeeErr := e.feeInQuote(ctx, swap.Fees)
	feeErr := spotFeeErr
	if feeErr == nil {
		feeErr = swapFeeErr
	}

	closeSpot := domain.LegFill{
		OrderID:  spot.ID,
		Symbol:   pair.Spot.Symbol,
		AvgPrice: spot.Average,
		Amount:   spot.Filled,
		Cost:     spot.Cost,
		Fee:      spotFee,
	}
	closeSwap := domain.LegFill{
		OrderID:  swap.ID,
		Symbol:   pair.Swap.Symbol,
		AvgPrice: swap.Average,
		Amount:   swap.Filled,
		Cost:     swap.Cost,
		Fee:      swapFee,
	}

	// Realized outcome from fills: the spot leg earns its sale over its
	// purchase, the short earns its opening proceeds over the buy-back.
	gross := closeSpot.Cost.Sub(open.Spot.Cost).
		Add(open.Swap.Cost.Sub(closeSwap.Cost))
	fees := open.Spot.Fee.Add(open.Swap.Fee).Add(spotFee).Add(swapFee)
	net := gross.Sub(fees)
	roi := decimal.Zero
	if invested := open.Invested(); invested.IsPositive() {
		roi = net.Div(invested).Mul(decimal.NewFromInt(100))
	}

	return domain.CloseState{
		Spot:     closeSpot,
		Swap:     closeSwap,
		GrossPnL: gross,
		NetPnL:   net,
		ROI:      roi,
		ClosedAt: time.Now().UTC(),
	}, feeErr
}

// feeInQuote sums order fees in quote currency. A fee charged in a third
// asset converts through a live price no older than the configured cap; a
// stale price fails the computation rather than misstating PnL.
func (e *Executor) feeInQuote(ctx context.Context, fees []exdomain.Fee) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, fee := range fees {
		if fee.Asset == e.cfg.QuoteAsset {
			total = total.Add(fee.Amount)
			continue
		}
		point, err := e.gateway.LastPrice(ctx, fee.Asset+e.cfg.QuoteAsset)
		if err != nil {
			return decimal.Zero, err
		}
		if e.cfg.FeePriceMaxAge > 0 && time.Since(point.At) > e.cfg.FeePriceMaxAge {
			return decimal.Zero, apperror.New(apperror.CodeStalePrice,
				apperror.WithContextf("%s price is %s old", point.Symbol, time.Since(point.At)))
		}
		total = total.Add(fee.Amount.Mul(point.Price))
	}
	return total, nil
}

// freeSpotBase reads the currently held free base balance, quantized to the
// spot amount step.
func (e *Executor) freeSpotBase(ctx context.Context, pair instrdomain.Pair) (decimal.Decimal, error) {
	free, err := e.gateway.FetchBalance(ctx, exdomain.VenueSpot)
	if err != nil {
		return decimal.Zero, err
	}
	return money.StepDown(free[pair.Spot.Base], pair.Spot.AmountStep), nil
}

func (e *Executor) alert(ctx context.Context, text string) {
	if e.notifier != nil {
		e.notifier.Send(ctx, text)
	}
}
