package app

import (
	"context"
	"errors"
	"testing"
	"time"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

type fakeSource struct {
	watch func(ctx context.Context, venue exdomain.Venue, symbol string) (<-chan exdomain.BookSnapshot, error)
}

func (f *fakeSource) WatchOrderBook(ctx context.Context, venue exdomain.Venue, symbol string) (<-chan exdomain.BookSnapshot, error) {
	return f.watch(ctx, venue, symbol)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) logger.LoggerInterface {
	t.Helper()
	return logger.New(testWriter{t}, logger.LevelError, "test", nil)
}

func snapshot(updateID int64, bidPrice, askPrice string) exdomain.BookSnapshot {
	return exdomain.BookSnapshot{
		Venue:    exdomain.VenueSpot,
		Symbol:   "BTCUSDT",
		UpdateID: updateID,
		Bids: []exdomain.BookLevel{{
			Price:  decimal.RequireFromString(bidPrice),
			Amount: decimal.RequireFromString("100"),
		}},
		Asks: []exdomain.BookLevel{{
			Price:  decimal.RequireFromString(askPrice),
			Amount: decimal.RequireFromString("100"),
		}},
	}
}

func newTestSubscriber(t *testing.T, source BookSource, cfg SubscriberConfig) *Subscriber {
	t.Helper()
	if cfg.Venue == "" {
		cfg.Venue = exdomain.VenueSpot
	}
	if cfg.Symbol == "" {
		cfg.Symbol = "BTCUSDT"
	}
	if cfg.Notional.IsZero() {
		cfg.Notional = decimal.RequireFromString("50")
	}
	sub := NewSubscriber(cfg, source, testLogger(t))
	sub.backoff = func(int) time.Duration { return time.Millisecond }
	return sub
}

func TestSubscriberSuppressesUnchangedTicks(t *testing.T) {
	snaps := make(chan exdomain.BookSnapshot, 4)
	snaps <- snapshot(1, "99", "101")
	snaps <- snapshot(2, "99", "101") // identical levels, must be suppressed
	snaps <- snapshot(3, "98", "101")
	close(snaps)

	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		return snaps, nil
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{MaxReconnects: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	var quotes int
	timeout := time.After(2 * time.Second)
	for quotes < 2 {
		select {
		case _, ok := <-sub.Quotes():
			if !ok {
				t.Fatalf("quote channel closed after %d quotes", quotes)
			}
			quotes++
		case <-timeout:
			t.Fatalf("timed out after %d quotes", quotes)
		}
	}
	cancel()
	<-done

	if quotes != 2 {
		t.Errorf("quotes = %d, want 2 (unchanged tick suppressed)", quotes)
	}
}

func TestSubscriberReconnectLimit(t *testing.T) {
	var attempts int
	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		attempts++
		return nil, errors.New("connection reset by peer")
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{MaxReconnects: 3})

	err := sub.Run(context.Background())
	if !apperror.HasCode(err, apperror.CodeReconnectLimitExceeded) {
		t.Fatalf("expected CodeReconnectLimitExceeded, got %v", err)
	}
	if sub.State() != StateFailed {
		t.Errorf("state = %s, want %s", sub.State(), StateFailed)
	}
	// Initial attempt plus three retries.
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestSubscriberFatalErrorPropagatesImmediately(t *testing.T) {
	var attempts int
	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		attempts++
		return nil, errors.New("invalid api key")
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{MaxReconnects: 5})

	err := sub.Run(context.Background())
	if err == nil || apperror.HasCode(err, apperror.CodeReconnectLimitExceeded) {
		t.Fatalf("expected immediate fatal error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestSubscriberCancellation(t *testing.T) {
	snaps := make(chan exdomain.BookSnapshot)
	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		return snaps, nil
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !apperror.HasCode(err, apperror.CodeSubscriptionCancelled) {
			t.Fatalf("expected CodeSubscriptionCancelled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if sub.State() != StateCancelled {
		t.Errorf("state = %s, want %s", sub.State(), StateCancelled)
	}
}

func TestSubscriberInsufficientLiquidityTearsDown(t *testing.T) {
	snaps := make(chan exdomain.BookSnapshot, 1)
	// One thin level against a 50 notional request.
	snaps <- exdomain.BookSnapshot{
		Venue:  exdomain.VenueSpot,
		Symbol: "BTCUSDT",
		Bids: []exdomain.BookLevel{{
			Price:  decimal.RequireFromString("10"),
			Amount: decimal.RequireFromString("1"),
		}},
		Asks: []exdomain.BookLevel{{
			Price:  decimal.RequireFromString("11"),
			Amount: decimal.RequireFromString("100"),
		}},
	}
	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		return snaps, nil
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{})

	err := sub.Run(context.Background())
	if !apperror.HasCode(err, apperror.CodeInsufficientLiquidity) {
		t.Fatalf("expected CodeInsufficientLiquidity, got %v", err)
	}
}

func TestSubscriberLatestValueWins(t *testing.T) {
	snaps := make(chan exdomain.BookSnapshot, 4)
	snaps <- snapshot(1, "90", "101")
	snaps <- snapshot(2, "91", "101")
	snaps <- snapshot(3, "92", "101")
	close(snaps)

	source := &fakeSource{watch: func(context.Context, exdomain.Venue, string) (<-chan exdomain.BookSnapshot, error) {
		return snaps, nil
	}}
	sub := newTestSubscriber(t, source, SubscriberConfig{QueueSize: 1, MaxReconnects: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	// Let all three ticks land before reading; with a queue of one, the
	// freshest quote must survive.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	var last decimal.Decimal
	for q := range sub.Quotes() {
		last = q.AvgBid
	}
	if !last.Equal(decimal.RequireFromString("92")) {
		t.Errorf("last quote bid = %s, want 92", last)
	}
}
