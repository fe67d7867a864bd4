// Package account implements the balance tracking bounded context.
package account

import (
	"context"
	"fmt"

	"basisarb/business/account/app"
	accountDI "basisarb/business/account/di"
	exchangeDI "basisarb/business/exchange/di"
	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/config"
	"basisarb/internal/di"
	"basisarb/internal/logger"
	"basisarb/internal/monolith"
)

// Module implements the account bounded context.
type Module struct{}

// RegisterServices registers the balance registry with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, accountDI.Registry, func(sr di.ServiceRegistry) *app.Registry {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		gateway := exchangeDI.GetGateway(sr)

		return app.NewRegistry(app.RegistryConfig{
			Asset:    cfg.Arbitrage.QuoteAsset,
			Fraction: cfg.Arbitrage.BalanceFractionDecimal(),
			MaxSlots: cfg.Arbitrage.MaxActiveDeals,
		}, gateway, log)
	})
	return nil
}

// Startup registers one tracker per venue and runs each under the
// supervisor, then blocks until every tracker holds its first snapshot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	registry := accountDI.GetRegistry(mono.Services())

	for _, venue := range []exdomain.Venue{exdomain.VenueSpot, exdomain.VenueSwap} {
		tracker, err := registry.Register(venue)
		if err != nil {
			return fmt.Errorf("register balance tracker: %w", err)
		}
		name := fmt.Sprintf("balance-%s", venue)
		if err := mono.Supervisor().Add(ctx, name, tracker.Run); err != nil {
			return fmt.Errorf("supervise %s: %w", name, err)
		}
	}

	if err := registry.WaitReady(ctx); err != nil {
		return fmt.Errorf("wait for balance snapshots: %w", err)
	}

	if venue, min, err := registry.MinBalance(); err == nil {
		log.Info(ctx, "account module started",
			"min_balance_venue", venue, "min_balance", min)
	}
	return nil
}
