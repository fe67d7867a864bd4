package app

import (
	"context"
	"fmt"

	exdomain "basisarb/business/exchange/domain"
	instrdomain "basisarb/business/instrument/domain"
	marketdomain "basisarb/business/market/domain"
	"basisarb/business/trading/domain"
	"basisarb/internal/logger"
	"basisarb/internal/supervisor"

	"github.com/shopspring/decimal"
)

// QuoteStream is one leg's market-data subscription.
type QuoteStream interface {
	Run(ctx context.Context) error
	Quotes() <-chan marketdomain.Quote
}

// SubscriberFactory builds a quote stream for a venue symbol.
type SubscriberFactory func(venue exdomain.Venue, symbol string) QuoteStream

// DealExecutor is the saga the engine drives.
type DealExecutor interface {
	Open(ctx context.Context, pair instrdomain.Pair, sizing instrdomain.Sizing, spotAsk, swapBid decimal.Decimal) (*domain.Deal, error)
	Close(ctx context.Context, pair instrdomain.Pair, deal *domain.Deal) (*domain.Deal, error)
}

// VolumeSource exposes the current per-deal notional cap.
type VolumeSource interface {
	MaxDealVolume() decimal.Decimal
}

// EngineConfig tunes one pair's signal engine.
type EngineConfig struct {
	// OpenThreshold is the open-ratio level in percent that must be
	// exceeded on two consecutive readings to trigger an entry.
	OpenThreshold decimal.Decimal
	// MaxActiveDeals caps concurrently open deals across all pairs.
	MaxActiveDeals int
	// CloseRules is the close-decision table.
	CloseRules []domain.CloseRule
}

// Engine is the per-pair signal loop. It owns both leg subscribers as a
// matched set via the supervisor, merges their quotes in arrival order, and
// drives the executor. Its errors never escalate beyond the pair.
type Engine struct {
	pair     instrdomain.Pair
	cfg      EngineConfig
	subs     SubscriberFactory
	executor DealExecutor
	ledger   Ledger
	volume   VolumeSource
	reporter Reporter
	sup      *supervisor.Supervisor
	log      logger.LoggerInterface

	lastSpot *marketdomain.Quote
	lastSwap *marketdomain.Quote
	prevOpen *decimal.Decimal

	openExtrema  domain.Extrema
	closeExtrema domain.Extrema
	monitor      *Monitor
}

// NewEngine builds a pair engine.
func NewEngine(pair instrdomain.Pair, cfg EngineConfig, subs SubscriberFactory, executor DealExecutor, ledger Ledger, volume VolumeSource, reporter Reporter, sup *supervisor.Supervisor, log logger.LoggerInterface) *Engine {
	return &Engine{
		pair:     pair,
		cfg:      cfg,
		subs:     subs,
		executor: executor,
		ledger:   ledger,
		volume:   volume,
		reporter: reporter,
		sup:      sup,
		log:      log,
	}
}

// Run drives the pair until cancellation or a leg teardown. Both leg
// subscribers start and stop as a matched set.
func (e *Engine) Run(ctx context.Context) error {
	spotStream := e.subs(exdomain.VenueSpot, e.pair.Spot.Symbol)
	swapStream := e.subs(exdomain.VenueSwap, e.pair.Swap.Symbol)

	spotName := fmt.Sprintf("md-spot-%s", e.pair.Key)
	swapName := fmt.Sprintf("md-swap-%s", e.pair.Key)
	if err := e.sup.Add(ctx, spotName, spotStream.Run); err != nil {
		return err
	}
	if err := e.sup.Add(ctx, swapName, swapStream.Run); err != nil {
		e.sup.Cancel(ctx, spotName)
		return err
	}
	defer func() {
		// Cancel both legs together; idempotent if one already ended.
		e.sup.Cancel(context.WithoutCancel(ctx), spotName)
		e.sup.Cancel(context.WithoutCancel(ctx), swapName)
	}()

	// A recovered deal from a previous run is treated like a fresh one.
	if deal, ok := e.ledger.Get(e.pair.Key); ok && deal.IsOpen() {
		e.monitor = NewMonitor(e.cfg.CloseRules)
		e.log.Info(ctx, "recovered open deal", "pair", e.pair.Key, "stage", deal.Stage)
	}

	spotQuotes := spotStream.Quotes()
	swapQuotes := swapStream.Quotes()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case q, ok := <-spotQuotes:
			if !ok {
				return e.legEnded(ctx, spotName)
			}
			e.lastSpot = &q
			e.onTick(ctx)

		case q, ok := <-swapQuotes:
			if !ok {
				return e.legEnded(ctx, swapName)
			}
			e.lastSwap = &q
			e.onTick(ctx)
		}
	}
}

// legEnded resolves why a leg stream stopped and tears the pair down.
func (e *Engine) legEnded(ctx context.Context, name string) error {
	err := e.sup.Err(name)
	if err == nil {
		err = fmt.Errorf("%s: quote stream ended", name)
	}
	e.log.Warn(ctx, "pair torn down", "pair", e.pair.Key, "leg", name, "error", err)
	return err
}

// onTick recomputes both ratios once both legs have quoted, then either
// watches an open deal for exit or evaluates the entry trigger.
func (e *Engine) onTick(ctx context.Context) {
	if e.lastSpot == nil || e.lastSwap == nil {
		return
	}

	openRatio := domain.OpenRatio(e.lastSwap.AvgBid, e.lastSpot.AvgAsk)
	closeRatio := domain.CloseRatio(e.lastSpot.AvgBid, e.lastSwap.AvgAsk)
	e.openExtrema.Observe(openRatio)
	e.closeExtrema.Observe(closeRatio)
	if e.reporter != nil {
		e.reporter.PairStatus(e.pair.Key, openRatio, closeRatio, e.openExtrema)
	}

	prevOpen := e.prevOpen
	e.prevOpen = &openRatio

	if deal, ok := e.ledger.Get(e.pair.Key); ok && deal.IsOpen() {
		e.watchOpenDeal(ctx, deal, openRatio, closeRatio)
	} else {
		e.evaluateEntry(ctx, prevOpen, openRatio)
	}
}

func (e *Engine) watchOpenDeal(ctx context.Context, deal *domain.Deal, openRatio, closeRatio decimal.Decimal) {
	if e.monitor == nil {
		e.monitor = NewMonitor(e.cfg.CloseRules)
	}
	pnl, shouldClose := e.monitor.Evaluate(*deal.Open,
		e.lastSpot.AvgBid, e.lastSwap.AvgAsk, openRatio, closeRatio)
	if e.reporter != nil {
		e.reporter.DealUpdate(deal, &pnl)
	}
	// A deal already at the closing stage is mid-exit (an earlier close
	// attempt failed or was interrupted); resume it without re-consulting
	// the rules.
	if !shouldClose && deal.Stage != domain.StageClosing {
		return
	}

	closed, err := e.executor.Close(ctx, e.pair, deal)
	if err != nil {
		e.log.Error(ctx, "close failed", "pair", e.pair.Key, "error", err)
		e.monitor = nil
		return
	}
	e.log.Info(ctx, "deal closed",
		"pair", e.pair.Key,
		"net_pnl", closed.Close.NetPnL,
		"roi", closed.Close.ROI,
		"net_min", e.monitor.NetExtrema.Min,
		"net_max", e.monitor.NetExtrema.Max)
	if e.reporter != nil {
		e.reporter.DealUpdate(closed, nil)
	}
	e.monitor = nil
	e.prevOpen = nil
}

// evaluateEntry applies two-tick hysteresis: both the previous and current
// open ratio must clear the threshold before an entry fires. A failed open
// clears the previous reading, so every cycle earns its own confirmation.
func (e *Engine) evaluateEntry(ctx context.Context, prevOpen *decimal.Decimal, openRatio decimal.Decimal) {
	if openRatio.LessThanOrEqual(e.cfg.OpenThreshold) {
		return
	}
	if prevOpen == nil || prevOpen.LessThanOrEqual(e.cfg.OpenThreshold) {
		return
	}
	if e.ledger.Len() >= e.cfg.MaxActiveDeals {
		e.log.Debug(ctx, "deal slots exhausted", "pair", e.pair.Key, "open", e.ledger.Len())
		return
	}

	notional := e.volume.MaxDealVolume()
	if !notional.IsPositive() {
		e.log.Warn(ctx, "no deal volume available", "pair", e.pair.Key)
		return
	}

	sizing, err := instrdomain.SizeLegs(e.pair, notional, notional,
		e.lastSpot.AvgAsk, e.lastSwap.AvgBid)
	if err != nil {
		// Raised before any order; the entry is skipped, not the pair.
		e.log.Warn(ctx, "sizing rejected entry", "pair", e.pair.Key, "error", err)
		return
	}

	deal, err := e.executor.Open(ctx, e.pair, sizing, e.lastSpot.AvgAsk, e.lastSwap.AvgBid)
	if err != nil {
		e.log.Error(ctx, "open failed", "pair", e.pair.Key, "error", err)
		e.prevOpen = nil
		return
	}
	e.monitor = NewMonitor(e.cfg.CloseRules)
	e.log.Info(ctx, "deal opened",
		"pair", e.pair.Key,
		"ratio", deal.Signal.OpenRatio,
		"spot_amount", deal.Open.Spot.Amount,
		"swap_contracts", deal.Open.Swap.Amount)
}
