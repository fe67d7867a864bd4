// Package instrument implements the instrument catalog bounded context.
package instrument

import (
	"context"
	"fmt"

	exchangeDI "basisarb/business/exchange/di"
	"basisarb/business/instrument/app"
	instrumentDI "basisarb/business/instrument/di"
	"basisarb/internal/config"
	"basisarb/internal/di"
	"basisarb/internal/logger"
	"basisarb/internal/monolith"
)

// Module implements the instrument bounded context.
type Module struct{}

// RegisterServices registers the catalog with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, instrumentDI.Catalog, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		gateway := exchangeDI.GetGateway(sr)

		return app.NewService(app.Config{
			QuoteAsset: cfg.Arbitrage.QuoteAsset,
			BaseAssets: cfg.Arbitrage.BaseAssets,
			Leverage:   cfg.Gateway.Leverage,
			MarginMode: cfg.Gateway.MarginMode,
		}, gateway, log)
	})
	return nil
}

// Startup loads the catalog and prepares every swap leg for trading.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	catalog := instrumentDI.GetCatalog(mono.Services())

	if err := catalog.Reload(ctx); err != nil {
		return fmt.Errorf("load instrument catalog: %w", err)
	}
	if err := catalog.PrepareSwapLegs(ctx); err != nil {
		return fmt.Errorf("prepare swap legs: %w", err)
	}

	mono.Logger().Info(ctx, "instrument module started", "pairs", len(catalog.Pairs()))
	return nil
}
