package app

import (
	"context"
	"sync"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

// Registry holds one Tracker per venue and derives the cross-venue deal
// volume cap. Construct it once and pass it explicitly; registering the same
// venue twice is a configuration error.
type Registry struct {
	asset    string
	fraction decimal.Decimal
	maxSlots int
	source   BalanceSource
	log      logger.LoggerInterface

	mu       sync.Mutex
	trackers map[exdomain.Venue]*Tracker
}

// RegistryConfig configures the balance registry.
type RegistryConfig struct {
	// Asset is the quote asset whose free balance is tracked.
	Asset string
	// Fraction of the minimum balance exposed to sizing, typically 0.9.
	Fraction decimal.Decimal
	// MaxSlots is the number of concurrent deals the balance is split over.
	MaxSlots int
}

// NewRegistry builds an empty registry.
func NewRegistry(cfg RegistryConfig, source BalanceSource, log logger.LoggerInterface) *Registry {
	return &Registry{
		asset:    cfg.Asset,
		fraction: cfg.Fraction,
		maxSlots: cfg.MaxSlots,
		source:   source,
		log:      log,
		trackers: make(map[exdomain.Venue]*Tracker),
	}
}

// Register creates the tracker for a venue. A duplicate venue is rejected.
func (r *Registry) Register(venue exdomain.Venue) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.trackers[venue]; exists {
		return nil, apperror.New(apperror.CodeBalanceUnavailable,
			apperror.WithContextf("venue %q already registered", venue))
	}
	t := newTracker(venue, r.asset, r.source, r.log)
	r.trackers[venue] = t
	return t, nil
}

// Tracker returns the tracker for a venue, or nil if unregistered.
func (r *Registry) Tracker(venue exdomain.Venue) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trackers[venue]
}

// Venues returns the registered venues.
func (r *Registry) Venues() []exdomain.Venue {
	r.mu.Lock()
	defer r.mu.Unlock()
	venues := make([]exdomain.Venue, 0, len(r.trackers))
	for v := range r.trackers {
		venues = append(venues, v)
	}
	return venues
}

// MinBalance scans every tracker and returns the venue with the smallest
// valid free balance. It fails if any tracker lacks a valid snapshot, since
// a minimum over partial data would overstate available funds.
func (r *Registry) MinBalance() (exdomain.Venue, decimal.Decimal, error) {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	if len(trackers) == 0 {
		return "", decimal.Zero, apperror.New(apperror.CodeBalanceUnavailable,
			apperror.WithContext("no venues registered"))
	}

	var minVenue exdomain.Venue
	var minFree decimal.Decimal
	for i, t := range trackers {
		snap := t.Snapshot()
		if !snap.Valid() {
			return "", decimal.Zero, apperror.New(apperror.CodeBalanceUnavailable,
				apperror.WithContextf("venue %q has no valid balance", t.venue))
		}
		if i == 0 || snap.Free.LessThan(minFree) {
			minVenue = t.venue
			minFree = snap.Free
		}
	}
	return minVenue, minFree, nil
}

// RecomputeMaxDealVolume derives the per-deal volume cap from the smallest
// venue balance and broadcasts it to every tracker.
//
//	MaxDealVolume = fraction × min_balance / max_slots
func (r *Registry) RecomputeMaxDealVolume() (decimal.Decimal, error) {
	if r.maxSlots <= 0 {
		return decimal.Zero, apperror.New(apperror.CodeBalanceUnavailable,
			apperror.WithContext("max slots not configured"))
	}
	_, minFree, err := r.MinBalance()
	if err != nil {
		return decimal.Zero, err
	}

	volume := r.fraction.Mul(minFree).Div(decimal.NewFromInt(int64(r.maxSlots)))

	r.mu.Lock()
	for _, t := range r.trackers {
		t.setMaxVolume(volume)
	}
	r.mu.Unlock()
	return volume, nil
}

// WaitReady suspends until every tracker holds its first snapshot, then runs
// the first volume computation.
func (r *Registry) WaitReady(ctx context.Context) error {
	r.mu.Lock()
	trackers := make([]*Tracker, 0, len(r.trackers))
	for _, t := range r.trackers {
		trackers = append(trackers, t)
	}
	r.mu.Unlock()

	for _, t := range trackers {
		if err := t.WaitReady(ctx); err != nil {
			return err
		}
	}
	if r.maxSlots > 0 {
		if _, err := r.RecomputeMaxDealVolume(); err != nil {
			return err
		}
	}
	return nil
}
