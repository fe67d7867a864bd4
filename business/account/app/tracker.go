// Package app contains the balance tracking services.
package app

import (
	"context"
	"sync"
	"time"

	"basisarb/business/account/domain"
	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

// BalanceSource is the slice of the exchange gateway the account context
// consumes.
type BalanceSource interface {
	FetchBalance(ctx context.Context, venue exdomain.Venue) (map[string]decimal.Decimal, error)
	WatchBalance(ctx context.Context, venue exdomain.Venue) (<-chan exdomain.BalanceUpdate, error)
}

const fetchRetryDelay = 5 * time.Second

// Tracker follows the free balance of one asset on one venue: an initial
// snapshot fetch retried until it lands, then a continuous update stream.
type Tracker struct {
	venue  exdomain.Venue
	asset  string
	source BalanceSource
	log    logger.LoggerInterface

	mu        sync.Mutex
	snapshot  domain.BalanceSnapshot
	maxVolume decimal.Decimal

	readyOnce sync.Once
	ready     chan struct{}
}

func newTracker(venue exdomain.Venue, asset string, source BalanceSource, log logger.LoggerInterface) *Tracker {
	return &Tracker{
		venue:  venue,
		asset:  asset,
		source: source,
		log:    log,
		ready:  make(chan struct{}),
	}
}

// Snapshot returns the current balance snapshot.
func (t *Tracker) Snapshot() domain.BalanceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot
}

// Valid reports whether the tracker holds a positive snapshot.
func (t *Tracker) Valid() bool {
	return t.Snapshot().Valid()
}

// MaxDealVolume returns the last volume broadcast by the registry; zero
// until the first cross-venue computation.
func (t *Tracker) MaxDealVolume() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.maxVolume
}

// WaitReady suspends until the first snapshot has landed.
func (t *Tracker) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ready:
		return nil
	}
}

// Run fetches the initial snapshot, retrying on a fixed delay until it
// succeeds, then follows the venue's balance stream, reopening it on drops.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		free, err := t.source.FetchBalance(ctx, t.venue)
		if err == nil {
			t.apply(free[t.asset])
			t.readyOnce.Do(func() { close(t.ready) })
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warn(ctx, "balance fetch failed, retrying",
			"venue", t.venue, "delay", fetchRetryDelay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(fetchRetryDelay):
		}
	}

	for {
		updates, err := t.source.WatchBalance(ctx, t.venue)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.log.Warn(ctx, "balance stream open failed, retrying",
				"venue", t.venue, "delay", fetchRetryDelay, "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		for update := range updates {
			if free, ok := update.Free[t.asset]; ok {
				t.apply(free)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		t.log.Warn(ctx, "balance stream closed, reopening", "venue", t.venue)
	}
}

// apply writes the new balance only when it actually changed.
func (t *Tracker) apply(free decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.snapshot.UpdatedAt.IsZero() && t.snapshot.Free.Equal(free) {
		return
	}
	t.snapshot = domain.BalanceSnapshot{
		Venue:     t.venue,
		Asset:     t.asset,
		Free:      free,
		UpdatedAt: time.Now(),
	}
}

func (t *Tracker) setMaxVolume(v decimal.Decimal) {
	t.mu.Lock()
	t.maxVolume = v
	t.mu.Unlock()
}
