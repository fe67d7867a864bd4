package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	exdomain "basisarb/business/exchange/domain"
	instrdomain "basisarb/business/instrument/domain"
	marketdomain "basisarb/business/market/domain"
	"basisarb/business/trading/domain"
	"basisarb/internal/supervisor"

	"github.com/shopspring/decimal"
)

type fakeStream struct {
	quotes chan marketdomain.Quote
}

func (s *fakeStream) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *fakeStream) Quotes() <-chan marketdomain.Quote { return s.quotes }

// fakeExecutor mimics the real executor's ledger side effects so the engine
// observes state transitions the same way.
type fakeExecutor struct {
	mu        sync.Mutex
	ledger    Ledger
	opens     int
	closes    int
	failOpens int // remaining scripted open failures
}

func (f *fakeExecutor) Open(_ context.Context, pair instrdomain.Pair, sizing instrdomain.Sizing, spotAsk, swapBid decimal.Decimal) (*domain.Deal, error) {
	f.mu.Lock()
	f.opens++
	fail := f.failOpens > 0
	if fail {
		f.failOpens--
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("venue rejected both legs")
	}

	deal := domain.NewDeal(pair.Key, domain.SignalInputs{
		OpenRatio: domain.OpenRatio(swapBid, spotAsk),
		SpotAsk:   spotAsk,
		SwapBid:   swapBid,
		At:        time.Now().UTC(),
	})
	if err := deal.MarkOpening(); err != nil {
		return nil, err
	}
	if err := deal.MarkOpen(openStateFor(sizing, spotAsk, swapBid)); err != nil {
		return nil, err
	}
	if err := f.ledger.Put(deal); err != nil {
		return nil, err
	}
	return deal, nil
}

func (f *fakeExecutor) Close(_ context.Context, pair instrdomain.Pair, deal *domain.Deal) (*domain.Deal, error) {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()

	if err := deal.MarkClosing(); err != nil {
		return nil, err
	}
	if err := deal.MarkClosed(domain.CloseState{ClosedAt: time.Now().UTC()}); err != nil {
		return nil, err
	}
	if err := f.ledger.Remove(pair.Key); err != nil {
		return nil, err
	}
	return deal, nil
}

func (f *fakeExecutor) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes
}

func openStateFor(sizing instrdomain.Sizing, spotAsk, swapBid decimal.Decimal) domain.OpenState {
	return domain.OpenState{
		Spot: domain.LegFill{
			AvgPrice: spotAsk,
			Amount:   sizing.SpotAmount,
			Cost:     spotAsk.Mul(sizing.SpotAmount),
			Fee:      decimal.RequireFromString("0.01"),
		},
		Swap: domain.LegFill{
			AvgPrice: swapBid,
			Amount:   sizing.SwapContracts,
			Cost:     swapBid.Mul(sizing.SwapContracts),
			Fee:      decimal.RequireFromString("0.01"),
		},
		ContractSize: decimal.NewFromInt(1),
		OpenedAt:     time.Now().UTC(),
	}
}

type fixedVolume struct{ v decimal.Decimal }

func (f fixedVolume) MaxDealVolume() decimal.Decimal { return f.v }

type engineHarness struct {
	engine *Engine
	exec   *fakeExecutor
	ledger *memLedger
	spot   chan marketdomain.Quote
	swap   chan marketdomain.Quote
	done   chan error
	cancel context.CancelFunc
}

func startEngine(t *testing.T, cfg EngineConfig, ledger *memLedger, volume VolumeSource) *engineHarness {
	t.Helper()

	h := &engineHarness{
		ledger: ledger,
		spot:   make(chan marketdomain.Quote),
		swap:   make(chan marketdomain.Quote),
		done:   make(chan error, 1),
	}
	h.exec = &fakeExecutor{ledger: ledger}

	streams := map[exdomain.Venue]*fakeStream{
		exdomain.VenueSpot: {quotes: h.spot},
		exdomain.VenueSwap: {quotes: h.swap},
	}
	factory := func(venue exdomain.Venue, _ string) QuoteStream {
		return streams[venue]
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	h.engine = NewEngine(execPair(), cfg, factory, h.exec, ledger, volume,
		nil, supervisor.New(testLogger(t)), testLogger(t))
	go func() { h.done <- h.engine.Run(ctx) }()
	return h
}

func (h *engineHarness) finish(t *testing.T) {
	t.Helper()
	close(h.swap)
	select {
	case <-h.done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}

func spotQuote(bid, ask string) marketdomain.Quote {
	return marketdomain.Quote{
		Venue:      exdomain.VenueSpot,
		Symbol:     "BTCUSDT",
		AvgBid:     decimal.RequireFromString(bid),
		AvgAsk:     decimal.RequireFromString(ask),
		ReceivedAt: time.Now(),
	}
}

func swapQuote(bid, ask string) marketdomain.Quote {
	return marketdomain.Quote{
		Venue:      exdomain.VenueSwap,
		Symbol:     "BTCUSDT",
		AvgBid:     decimal.RequireFromString(bid),
		AvgAsk:     decimal.RequireFromString(ask),
		ReceivedAt: time.Now(),
	}
}

func TestEngineRequiresTwoConsecutiveTicks(t *testing.T) {
	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
	}, newMemLedger(), fixedVolume{decimal.NewFromInt(36)})

	h.spot <- spotQuote("99.9", "100")
	// Open ratios 0.4, 2.1, 2.3: only the third tick has two consecutive
	// readings above the threshold.
	h.swap <- swapQuote("100.4", "100.5")
	h.swap <- swapQuote("102.1", "102.2")
	h.swap <- swapQuote("102.3", "102.4")
	h.finish(t)

	opens, _ := h.exec.counts()
	if opens != 1 {
		t.Errorf("opens = %d, want 1", opens)
	}
	if h.ledger.Len() != 1 {
		t.Errorf("ledger len = %d, want 1", h.ledger.Len())
	}
}

func TestEngineSingleSpikeDoesNotOpen(t *testing.T) {
	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
	}, newMemLedger(), fixedVolume{decimal.NewFromInt(36)})

	h.spot <- spotQuote("99.9", "100")
	h.swap <- swapQuote("100.4", "100.5")
	h.swap <- swapQuote("102.1", "102.2") // isolated spike
	h.swap <- swapQuote("100.3", "100.4")
	h.finish(t)

	if opens, _ := h.exec.counts(); opens != 0 {
		t.Errorf("opens = %d, want 0", opens)
	}
}

func TestEngineFailedOpenNeedsFreshConfirmation(t *testing.T) {
	ledger := newMemLedger()
	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
	}, ledger, fixedVolume{decimal.NewFromInt(36)})
	h.exec.mu.Lock()
	h.exec.failOpens = 1
	h.exec.mu.Unlock()

	h.spot <- spotQuote("99.9", "100")
	// Two confirmations fire an open that fails; a single further tick
	// above the threshold must not retry on its own, the new cycle has to
	// confirm across two readings again.
	h.swap <- swapQuote("102.1", "102.2")
	h.swap <- swapQuote("102.3", "102.4") // open attempt, fails
	h.swap <- swapQuote("102.5", "102.6") // first reading of the new cycle only
	h.finish(t)

	opens, _ := h.exec.counts()
	if opens != 1 {
		t.Errorf("opens = %d, want 1 (no retry without fresh confirmation)", opens)
	}
	if ledger.Len() != 0 {
		t.Errorf("ledger len = %d, want 0", ledger.Len())
	}
}

func TestEngineRespectsDealSlots(t *testing.T) {
	ledger := newMemLedger()
	other := domain.NewDeal("ETHUSDT_ETHUSDT", domain.SignalInputs{At: time.Now()})
	if err := other.MarkOpening(); err != nil {
		t.Fatal(err)
	}
	if err := other.MarkOpen(domain.OpenState{OpenedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Put(other); err != nil {
		t.Fatal(err)
	}

	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 1,
	}, ledger, fixedVolume{decimal.NewFromInt(36)})

	h.spot <- spotQuote("99.9", "100")
	h.swap <- swapQuote("102.1", "102.2")
	h.swap <- swapQuote("102.3", "102.4")
	h.finish(t)

	if opens, _ := h.exec.counts(); opens != 0 {
		t.Errorf("opens = %d, want 0 with slots exhausted", opens)
	}
}

func TestEngineSkipsWithoutVolume(t *testing.T) {
	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
	}, newMemLedger(), fixedVolume{decimal.Zero})

	h.spot <- spotQuote("99.9", "100")
	h.swap <- swapQuote("102.1", "102.2")
	h.swap <- swapQuote("102.3", "102.4")
	h.finish(t)

	if opens, _ := h.exec.counts(); opens != 0 {
		t.Errorf("opens = %d, want 0 without volume", opens)
	}
}

func TestEngineClosesRecoveredDeal(t *testing.T) {
	pair := execPair()
	ledger := newMemLedger()

	deal := domain.NewDeal(pair.Key, domain.SignalInputs{At: time.Now()})
	if err := deal.MarkOpening(); err != nil {
		t.Fatal(err)
	}
	err := deal.MarkOpen(openStateFor(instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.352"),
		SwapContracts: decimal.RequireFromString("0.352"),
	}, decimal.NewFromInt(100), decimal.NewFromInt(102)))
	if err != nil {
		t.Fatal(err)
	}
	if err := ledger.Put(deal); err != nil {
		t.Fatal(err)
	}

	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
		CloseRules: []domain.CloseRule{{
			OpenRatioBelow:  decimal.RequireFromString("0.5"),
			CloseRatioAbove: decimal.RequireFromString("0.1"),
		}},
	}, ledger, fixedVolume{decimal.NewFromInt(36)})

	// Open ratio 0.2 ≤ 0.5 and close ratio ≈0.5 ≥ 0.1: the rule fires on
	// the first complete tick.
	h.spot <- spotQuote("101", "100")
	h.swap <- swapQuote("100.2", "100.5")
	h.finish(t)

	_, closes := h.exec.counts()
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if ledger.Len() != 0 {
		t.Errorf("ledger len = %d, want 0 after close", ledger.Len())
	}
}

func TestEngineResumesClosingDeal(t *testing.T) {
	pair := execPair()
	ledger := newMemLedger()

	// A deal recovered at the closing stage is mid-exit; the engine must
	// finish the close even when no close rule fires.
	deal := domain.NewDeal(pair.Key, domain.SignalInputs{At: time.Now()})
	if err := deal.MarkOpening(); err != nil {
		t.Fatal(err)
	}
	err := deal.MarkOpen(openStateFor(instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.352"),
		SwapContracts: decimal.RequireFromString("0.352"),
	}, decimal.NewFromInt(100), decimal.NewFromInt(102)))
	if err != nil {
		t.Fatal(err)
	}
	if err := deal.MarkClosing(); err != nil {
		t.Fatal(err)
	}
	if err := ledger.Put(deal); err != nil {
		t.Fatal(err)
	}

	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
	}, ledger, fixedVolume{decimal.NewFromInt(36)})

	h.spot <- spotQuote("99.9", "100")
	h.swap <- swapQuote("100.2", "100.5")
	h.finish(t)

	_, closes := h.exec.counts()
	if closes != 1 {
		t.Errorf("closes = %d, want 1 (resumed exit)", closes)
	}
	if ledger.Len() != 0 {
		t.Errorf("ledger len = %d, want 0 after resumed close", ledger.Len())
	}
}

func TestEngineHoldsWhileRulesUnsatisfied(t *testing.T) {
	pair := execPair()
	ledger := newMemLedger()

	deal := domain.NewDeal(pair.Key, domain.SignalInputs{At: time.Now()})
	if err := deal.MarkOpening(); err != nil {
		t.Fatal(err)
	}
	err := deal.MarkOpen(openStateFor(instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.352"),
		SwapContracts: decimal.RequireFromString("0.352"),
	}, decimal.NewFromInt(100), decimal.NewFromInt(102)))
	if err != nil {
		t.Fatal(err)
	}
	if err := ledger.Put(deal); err != nil {
		t.Fatal(err)
	}

	h := startEngine(t, EngineConfig{
		OpenThreshold:  decimal.NewFromInt(2),
		MaxActiveDeals: 2,
		CloseRules: []domain.CloseRule{{
			OpenRatioBelow:  decimal.RequireFromString("-1"),
			CloseRatioAbove: decimal.RequireFromString("5"),
		}},
	}, ledger, fixedVolume{decimal.NewFromInt(36)})

	// Still well inside the hold region: nothing fires, and no new entry
	// can stack on an already open pair.
	h.spot <- spotQuote("101", "100")
	h.swap <- swapQuote("102.5", "102.6")
	h.swap <- swapQuote("102.7", "102.8")
	h.finish(t)

	opens, closes := h.exec.counts()
	if opens != 0 || closes != 0 {
		t.Errorf("opens = %d closes = %d, want 0 0", opens, closes)
	}
	if ledger.Len() != 1 {
		t.Errorf("ledger len = %d, want deal still held", ledger.Len())
	}
}
