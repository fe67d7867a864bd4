// Package app contains the instrument catalog service.
package app

import (
	"context"
	"sync"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/business/instrument/domain"
	"basisarb/internal/apperror"
	"basisarb/internal/logger"
)

// InstrumentSource is the slice of the exchange gateway this context
// consumes.
type InstrumentSource interface {
	LoadInstruments(ctx context.Context, venue exdomain.Venue) ([]exdomain.Instrument, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode string) error
}

// Config holds catalog construction settings.
type Config struct {
	QuoteAsset string
	BaseAssets []string
	Leverage   int
	MarginMode string
}

// Service loads instrument metadata, pairs spot markets with linear
// perpetuals, and prepares the swap legs for trading. The catalog is an
// immutable snapshot; Reload replaces it wholesale.
type Service struct {
	cfg    Config
	source InstrumentSource
	log    logger.LoggerInterface

	mu    sync.RWMutex
	pairs []domain.Pair
}

// NewService builds the catalog service.
func NewService(cfg Config, source InstrumentSource, log logger.LoggerInterface) *Service {
	return &Service{cfg: cfg, source: source, log: log}
}

// Reload fetches both venues' instrument lists and rebuilds the pair set.
func (s *Service) Reload(ctx context.Context) error {
	spots, err := s.source.LoadInstruments(ctx, exdomain.VenueSpot)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContext("load spot instruments"))
	}
	swaps, err := s.source.LoadInstruments(ctx, exdomain.VenueSwap)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeGatewayAPIError,
			apperror.WithContext("load swap instruments"))
	}

	pairs := domain.BuildPairs(spots, swaps, s.cfg.QuoteAsset, s.cfg.BaseAssets)
	if len(pairs) == 0 {
		return apperror.New(apperror.CodeConfigurationError,
			apperror.WithContextf("no tradable pairs for quote %s bases %v",
				s.cfg.QuoteAsset, s.cfg.BaseAssets))
	}

	s.mu.Lock()
	s.pairs = pairs
	s.mu.Unlock()

	s.log.Info(ctx, "instrument catalog loaded",
		"spot_markets", len(spots), "swap_markets", len(swaps), "pairs", len(pairs))
	return nil
}

// Pairs returns the current pair snapshot.
func (s *Service) Pairs() []domain.Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Pair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

// Pair looks up one pair by key.
func (s *Service) Pair(key string) (domain.Pair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.pairs {
		if p.Key == key {
			return p, true
		}
	}
	return domain.Pair{}, false
}

// PrepareSwapLegs sets margin mode and leverage on every paired swap symbol.
// A failure on one symbol aborts: trading a leg with unknown leverage is
// worse than not starting.
func (s *Service) PrepareSwapLegs(ctx context.Context) error {
	for _, pair := range s.Pairs() {
		if err := s.source.SetMarginMode(ctx, pair.Swap.Symbol, s.cfg.MarginMode); err != nil {
			return err
		}
		if err := s.source.SetLeverage(ctx, pair.Swap.Symbol, s.cfg.Leverage); err != nil {
			return err
		}
		s.log.Info(ctx, "swap leg prepared",
			"symbol", pair.Swap.Symbol, "margin_mode", s.cfg.MarginMode, "leverage", s.cfg.Leverage)
	}
	return nil
}
