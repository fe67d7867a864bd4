package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	exdomain "basisarb/business/exchange/domain"
	instrdomain "basisarb/business/instrument/domain"
	"basisarb/business/trading/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) logger.LoggerInterface {
	t.Helper()
	return logger.New(testWriter{t}, logger.LevelError, "test", nil)
}

// fakeGateway scripts per-venue order outcomes and records every request.
type fakeGateway struct {
	mu       sync.Mutex
	orders   []exdomain.OrderRequest
	failSpot int // remaining spot failures
	failSwap int // remaining swap failures
	balances map[string]decimal.Decimal
	price    exdomain.PricePoint
	feeAsset string
	nextID   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		feeAsset: "USDT",
		balances: map[string]decimal.Decimal{},
		price: exdomain.PricePoint{
			Symbol: "BNBUSDT",
			Price:  decimal.RequireFromString("500"),
			At:     time.Now(),
		},
	}
}

func (g *fakeGateway) PlaceOrder(_ context.Context, req exdomain.OrderRequest) (exdomain.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders = append(g.orders, req)

	if req.Venue == exdomain.VenueSpot && g.failSpot > 0 {
		g.failSpot--
		return exdomain.OrderResult{}, errors.New("spot venue rejected order")
	}
	if req.Venue == exdomain.VenueSwap && g.failSwap > 0 {
		g.failSwap--
		return exdomain.OrderResult{}, errors.New("swap venue rejected order")
	}

	g.nextID++
	price := req.Price
	if price.IsZero() {
		price = decimal.RequireFromString("100")
	}
	return exdomain.OrderResult{
		ID:      decimal.NewFromInt(int64(g.nextID)).String(),
		Venue:   req.Venue,
		Symbol:  req.Symbol,
		Side:    req.Side,
		Status:  exdomain.StatusFilled,
		Average: price,
		Filled:  req.Amount,
		Amount:  req.Amount,
		Cost:    price.Mul(req.Amount),
		Fees: []exdomain.Fee{{
			Asset:  g.feeAsset,
			Amount: decimal.RequireFromString("0.01"),
		}},
	}, nil
}

func (g *fakeGateway) FetchBalance(_ context.Context, venue exdomain.Venue) (map[string]decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(g.balances))
	for k, v := range g.balances {
		out[k] = v
	}
	return out, nil
}

func (g *fakeGateway) LastPrice(_ context.Context, _ string) (exdomain.PricePoint, error) {
	return g.price, nil
}

func (g *fakeGateway) ordersFor(venue exdomain.Venue) []exdomain.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []exdomain.OrderRequest
	for _, o := range g.orders {
		if o.Venue == venue {
			out = append(out, o)
		}
	}
	return out
}

// memLedger is an in-memory app.Ledger for executor tests.
type memLedger struct {
	mu    sync.Mutex
	deals map[string]*domain.Deal
}

func newMemLedger() *memLedger {
	return &memLedger{deals: map[string]*domain.Deal{}}
}

func (m *memLedger) Put(d *domain.Deal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals[d.PairKey] = d
	return nil
}

func (m *memLedger) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deals, key)
	return nil
}

func (m *memLedger) Get(key string) (*domain.Deal, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deals[key]
	return d, ok
}

func (m *memLedger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deals)
}

func (m *memLedger) All() []*domain.Deal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Deal, 0, len(m.deals))
	for _, d := range m.deals {
		out = append(out, d)
	}
	return out
}

// nopJournal drops audit events.
type nopJournal struct{}

func (nopJournal) RecordOrder(context.Context, string, string, exdomain.OrderResult) {}
func (nopJournal) RecordFailure(context.Context, string, string, map[string]any)     {}

// memJournal records audit event names for assertions.
type memJournal struct {
	mu       sync.Mutex
	orders   []string
	failures []string
}

func (j *memJournal) RecordOrder(_ context.Context, _ string, event string, _ exdomain.OrderResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.orders = append(j.orders, event)
}

func (j *memJournal) RecordFailure(_ context.Context, _ string, event string, _ map[string]any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failures = append(j.failures, event)
}

func (j *memJournal) hasFailure(event string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, e := range j.failures {
		if e == event {
			return true
		}
	}
	return false
}

func execPair() instrdomain.Pair {
	spot := exdomain.Instrument{
		Venue: exdomain.VenueSpot, Symbol: "BTCUSDT", Kind: exdomain.KindSpot,
		Base: "BTC", Quote: "USDT", Active: true,
		ContractSize: decimal.NewFromInt(1),
		AmountStep:   decimal.RequireFromString("0.0001"),
		PriceStep:    decimal.RequireFromString("0.01"),
	}
	swap := exdomain.Instrument{
		Venue: exdomain.VenueSwap, Symbol: "BTCUSDT", Kind: exdomain.KindSwap,
		Base: "BTC", Quote: "USDT", Settle: "USDT", Linear: true, Active: true,
		ContractSize: decimal.NewFromInt(1),
		AmountStep:   decimal.RequireFromString("0.001"),
		PriceStep:    decimal.RequireFromString("0.01"),
	}
	return instrdomain.Pair{Key: "BTCUSDT_BTCUSDT", Spot: spot, Swap: swap}
}

func newTestExecutor(t *testing.T, gateway *fakeGateway, ledger Ledger) *Executor {
	t.Helper()
	return newTestExecutorWithJournal(t, gateway, ledger, nopJournal{})
}

func newTestExecutorWithJournal(t *testing.T, gateway *fakeGateway, ledger Ledger, journal Journal) *Executor {
	t.Helper()
	return NewExecutor(ExecutorConfig{
		OrderRetries:   3,
		RetryDelay:     time.Millisecond,
		LimitPremium:   decimal.RequireFromString("0.005"),
		FeePriceMaxAge: time.Minute,
		QuoteAsset:     "USDT",
	}, gateway, ledger, journal, nil, testLogger(t))
}

func TestOpenBothLegsFill(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)

	pair := execPair()
	sizing := instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}

	deal, err := exec.Open(context.Background(), pair, sizing,
		decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if deal.Stage != domain.StageOpen {
		t.Errorf("stage = %s, want %s", deal.Stage, domain.StageOpen)
	}
	if _, ok := ledger.Get(pair.Key); !ok {
		t.Error("deal not in ledger")
	}

	// Spot leg is a limit buy at ask plus premium, quantized to the step.
	spotOrders := gateway.ordersFor(exdomain.VenueSpot)
	if len(spotOrders) != 1 || spotOrders[0].Type != exdomain.TypeLimit || spotOrders[0].Side != exdomain.SideBuy {
		t.Fatalf("spot orders = %+v", spotOrders)
	}
	if !spotOrders[0].Price.Equal(decimal.RequireFromString("50250")) {
		t.Errorf("limit price = %s, want 50250", spotOrders[0].Price)
	}

	// Swap leg is a market sell.
	swapOrders := gateway.ordersFor(exdomain.VenueSwap)
	if len(swapOrders) != 1 || swapOrders[0].Type != exdomain.TypeMarket || swapOrders[0].Side != exdomain.SideSell {
		t.Fatalf("swap orders = %+v", swapOrders)
	}
}

func TestOpenSwapFailsCompensatesSpot(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failSwap = 3 // exhausts the retry budget
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)

	pair := execPair()
	sizing := instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}

	_, err := exec.Open(context.Background(), pair, sizing,
		decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if !apperror.HasCode(err, apperror.CodeOpenSwapOrderFailed) {
		t.Fatalf("expected CodeOpenSwapOrderFailed, got %v", err)
	}

	// Saga property: no deal recorded, and the filled spot leg was sold
	// back for its filled amount.
	if ledger.Len() != 0 {
		t.Error("ledger not empty after failed open")
	}
	spotOrders := gateway.ordersFor(exdomain.VenueSpot)
	if len(spotOrders) != 2 {
		t.Fatalf("spot orders = %d, want 2 (open + compensation)", len(spotOrders))
	}
	comp := spotOrders[1]
	if comp.Side != exdomain.SideSell || comp.Type != exdomain.TypeMarket {
		t.Errorf("compensation order = %+v", comp)
	}
	if !comp.Amount.Equal(decimal.RequireFromString("0.019")) {
		t.Errorf("compensation amount = %s, want 0.019", comp.Amount)
	}

	// The swap leg burned its whole retry budget.
	if swapOrders := gateway.ordersFor(exdomain.VenueSwap); len(swapOrders) != 3 {
		t.Errorf("swap attempts = %d, want 3", len(swapOrders))
	}
}

func TestOpenSpotFailsCompensatesSwap(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failSpot = 3
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)

	pair := execPair()
	sizing := instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.02"),
		SwapContracts: decimal.RequireFromString("0.02"),
	}

	_, err := exec.Open(context.Background(), pair, sizing,
		decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if !apperror.HasCode(err, apperror.CodeOpenSpotOrderFailed) {
		t.Fatalf("expected CodeOpenSpotOrderFailed, got %v", err)
	}
	if ledger.Len() != 0 {
		t.Error("ledger not empty after failed open")
	}

	swapOrders := gateway.ordersFor(exdomain.VenueSwap)
	if len(swapOrders) != 2 {
		t.Fatalf("swap orders = %d, want 2 (open + compensation)", len(swapOrders))
	}
	comp := swapOrders[1]
	if comp.Side != exdomain.SideBuy || !comp.ReduceOnly {
		t.Errorf("compensation order = %+v", comp)
	}
}

func TestOpenBothFail(t *testing.T) {
	gateway := newFakeGateway()
	gateway.failSpot = 3
	gateway.failSwap = 3
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)

	_, err := exec.Open(context.Background(), execPair(), instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.02"),
		SwapContracts: decimal.RequireFromString("0.02"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))

	if !apperror.HasCode(err, apperror.CodeDealOpenFailed) {
		t.Fatalf("expected CodeDealOpenFailed, got %v", err)
	}
	if ledger.Len() != 0 {
		t.Error("ledger not empty")
	}
	// No compensation possible: exactly 3 attempts per leg, nothing else.
	if n := len(gateway.ordersFor(exdomain.VenueSpot)); n != 3 {
		t.Errorf("spot attempts = %d, want 3", n)
	}
	if n := len(gateway.ordersFor(exdomain.VenueSwap)); n != 3 {
		t.Errorf("swap attempts = %d, want 3", n)
	}
}

func TestCloseSellsHeldBalance(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Balance drifted below the opened amount; the close must sell what is
	// actually held, quantized to the spot step.
	gateway.mu.Lock()
	gateway.balances["BTC"] = decimal.RequireFromString("0.01893")
	gateway.mu.Unlock()

	closed, err := exec.Close(context.Background(), pair, deal)
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if closed.Stage != domain.StageClosed {
		t.Errorf("stage = %s, want %s", closed.Stage, domain.StageClosed)
	}
	if ledger.Len() != 0 {
		t.Error("deal still in ledger after close")
	}

	spotOrders := gateway.ordersFor(exdomain.VenueSpot)
	closeSpot := spotOrders[len(spotOrders)-1]
	if !closeSpot.Amount.Equal(decimal.RequireFromString("0.0189")) {
		t.Errorf("close spot amount = %s, want 0.0189", closeSpot.Amount)
	}

	swapOrders := gateway.ordersFor(exdomain.VenueSwap)
	closeSwap := swapOrders[len(swapOrders)-1]
	if closeSwap.Side != exdomain.SideBuy || !closeSwap.ReduceOnly {
		t.Errorf("close swap order = %+v", closeSwap)
	}
	if !closeSwap.Amount.Equal(decimal.RequireFromString("0.019")) {
		t.Errorf("close swap amount = %s, want originally opened 0.019", closeSwap.Amount)
	}
}

func TestCloseSwapFailureRestoresSpotLeg(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	gateway.mu.Lock()
	gateway.balances["BTC"] = decimal.RequireFromString("0.019")
	gateway.failSwap = 3
	gateway.mu.Unlock()

	_, err = exec.Close(context.Background(), pair, deal)
	if !apperror.HasCode(err, apperror.CodeCloseSwapOrderFailed) {
		t.Fatalf("expected CodeCloseSwapOrderFailed, got %v", err)
	}

	// The short is still open, so the sold base was bought back and the
	// deal stays for the next tick to retry the exit.
	if ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1 (deal kept for retry)", ledger.Len())
	}
	kept, _ := ledger.Get(pair.Key)
	if kept.Stage != domain.StageClosing {
		t.Errorf("stage = %s, want %s", kept.Stage, domain.StageClosing)
	}
	if !kept.IsOpen() {
		t.Error("kept deal must report live exposure")
	}

	spotOrders := gateway.ordersFor(exdomain.VenueSpot)
	if len(spotOrders) != 3 {
		t.Fatalf("spot orders = %d, want 3 (open, close, buy-back)", len(spotOrders))
	}
	buyBack := spotOrders[2]
	if buyBack.Side != exdomain.SideBuy || buyBack.Type != exdomain.TypeMarket {
		t.Errorf("buy-back order = %+v", buyBack)
	}
	if !buyBack.Amount.Equal(decimal.RequireFromString("0.019")) {
		t.Errorf("buy-back amount = %s, want 0.019", buyBack.Amount)
	}
}

func TestCloseSpotFailureRestoresShort(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	gateway.mu.Lock()
	gateway.balances["BTC"] = decimal.RequireFromString("0.019")
	gateway.failSpot = 3
	gateway.mu.Unlock()

	_, err = exec.Close(context.Background(), pair, deal)
	if !apperror.HasCode(err, apperror.CodeCloseSpotOrderFailed) {
		t.Fatalf("expected CodeCloseSpotOrderFailed, got %v", err)
	}
	if ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1 (deal kept for retry)", ledger.Len())
	}

	// The bought-back short was re-opened so both legs stay matched.
	swapOrders := gateway.ordersFor(exdomain.VenueSwap)
	if len(swapOrders) != 3 {
		t.Fatalf("swap orders = %d, want 3 (open, close, re-open)", len(swapOrders))
	}
	reopen := swapOrders[2]
	if reopen.Side != exdomain.SideSell || reopen.Type != exdomain.TypeMarket {
		t.Errorf("re-open order = %+v", reopen)
	}
	if !reopen.Amount.Equal(decimal.RequireFromString("0.019")) {
		t.Errorf("re-open amount = %s, want 0.019", reopen.Amount)
	}
}

func TestCloseBothFailKeepsDeal(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	gateway.mu.Lock()
	gateway.balances["BTC"] = decimal.RequireFromString("0.019")
	gateway.failSpot = 3
	gateway.failSwap = 3
	gateway.mu.Unlock()

	_, err = exec.Close(context.Background(), pair, deal)
	if !apperror.HasCode(err, apperror.CodeDealCloseFailed) {
		t.Fatalf("expected CodeDealCloseFailed, got %v", err)
	}
	// Neither exit executed: the hedge is intact and must stay tracked.
	if ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", ledger.Len())
	}
	kept, _ := ledger.Get(pair.Key)
	if kept.Stage != domain.StageClosing {
		t.Errorf("stage = %s, want %s", kept.Stage, domain.StageClosing)
	}
}

func TestCloseResumesRecoveredClosingDeal(t *testing.T) {
	gateway := newFakeGateway()
	ledger := newMemLedger()
	exec := newTestExecutor(t, gateway, ledger)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// An exit interrupted before its orders went out leaves the deal
	// persisted at the closing stage; after restart the close must resume
	// instead of rejecting the stage transition.
	if err := deal.MarkClosing(); err != nil {
		t.Fatalf("MarkClosing: %v", err)
	}
	if err := ledger.Put(deal); err != nil {
		t.Fatalf("Put: %v", err)
	}

	gateway.mu.Lock()
	gateway.balances["BTC"] = decimal.RequireFromString("0.019")
	gateway.mu.Unlock()

	closed, err := exec.Close(context.Background(), pair, deal)
	if err != nil {
		t.Fatalf("Close of recovered closing deal: %v", err)
	}
	if closed.Stage != domain.StageClosed {
		t.Errorf("stage = %s, want %s", closed.Stage, domain.StageClosed)
	}
	if ledger.Len() != 0 {
		t.Error("deal still in ledger after resumed close")
	}
	if n := len(gateway.ordersFor(exdomain.VenueSpot)); n != 2 {
		t.Errorf("spot orders = %d, want 2 (open + close)", n)
	}
	if n := len(gateway.ordersFor(exdomain.VenueSwap)); n != 2 {
		t.Errorf("swap orders = %d, want 2 (open + close)", n)
	}
}

func TestOpenCommitsDealWhenFeePriceStale(t *testing.T) {
	gateway := newFakeGateway()
	gateway.feeAsset = "BNB"
	gateway.price.At = time.Now().Add(-5 * time.Minute)
	ledger := newMemLedger()
	journal := &memJournal{}
	exec := newTestExecutorWithJournal(t, gateway, ledger, journal)
	pair := execPair()

	deal, err := exec.Open(context.Background(), pair, instrdomain.Sizing{
		SpotAmount:    decimal.RequireFromString("0.019"),
		SwapContracts: decimal.RequireFromString("0.019"),
	}, decimal.RequireFromString("50000"), decimal.RequireFromString("50100"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Both fills are live, so the position must be committed even though
	// the fee conversion failed; the fee is flagged, not the deal dropped.
	if deal.Stage != domain.StageOpen {
		t.Errorf("stage = %s, want %s", deal.Stage, domain.StageOpen)
	}
	if ledger.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", ledger.Len())
	}
	if !deal.Open.Spot.Fee.IsZero() || !deal.Open.Swap.Fee.IsZero() {
		t.Errorf("fees = %s/%s, want zero placeholders",
			deal.Open.Spot.Fee, deal.Open.Swap.Fee)
	}
	if !journal.hasFailure("open-fee-unresolved") {
		t.Errorf("journal failures = %v, want open-fee-unresolved", journal.failures)
	}
	// No compensation: exactly one order per leg.
	if n := len(gateway.ordersFor(exdomain.VenueSpot)); n != 1 {
		t.Errorf("spot orders = %d, want 1", n)
	}
	if n := len(gateway.ordersFor(exdomain.VenueSwap)); n != 1 {
		t.Errorf("swap orders = %d, want 1", n)
	}
}

func TestFeeConversionStalePrice(t *testing.T) {
	gateway := newFakeGateway()
	gateway.price.At = time.Now().Add(-5 * time.Minute)
	exec := newTestExecutor(t, gateway, newMemLedger())

	_, err := exec.feeInQuote(context.Background(), []exdomain.Fee{{
		Asset:  "BNB",
		Amount: decimal.RequireFromString("0.001"),
	}})
	if !apperror.HasCode(err, apperror.CodeStalePrice) {
		t.Fatalf("expected CodeStalePrice, got %v", err)
	}
}

func TestFeeConversionThirdAsset(t *testing.T) {
	gateway := newFakeGateway()
	exec := newTestExecutor(t, gateway, newMemLedger())

	total, err := exec.feeInQuote(context.Background(), []exdomain.Fee{
		{Asset: "USDT", Amount: decimal.RequireFromString("0.5")},
		{Asset: "BNB", Amount: decimal.RequireFromString("0.002")},
	})
	if err != nil {
		t.Fatalf("feeInQuote: %v", err)
	}
	// 0.5 + 0.002×500 = 1.5
	if !total.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("total = %s, want 1.5", total)
	}
}
