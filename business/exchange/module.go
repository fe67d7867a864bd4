// Package exchange implements the exchange gateway bounded context.
package exchange

import (
	"context"

	"basisarb/business/exchange/app"
	exchangeDI "basisarb/business/exchange/di"
	"basisarb/business/exchange/domain"
	"basisarb/business/exchange/infra/binance"
	"basisarb/internal/config"
	"basisarb/internal/di"
	"basisarb/internal/logger"
	"basisarb/internal/monolith"
)

// Module implements the exchange bounded context.
type Module struct{}

// RegisterServices registers the gateway with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, exchangeDI.Gateway, func(sr di.ServiceRegistry) app.Gateway {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		adapter, err := binance.NewAdapter(binance.Config{
			APIKey:            cfg.Gateway.APIKey,
			APISecret:         cfg.Gateway.APISecret,
			SpotWSURL:         cfg.Gateway.SpotWSURL,
			FuturesWSURL:      cfg.Gateway.FuturesWSURL,
			SnapshotDepth:     cfg.Gateway.SnapshotDepth,
			RequestsPerMinute: cfg.Gateway.RequestsPerMinute,
			ReadTimeout:       cfg.Gateway.ReadTimeout,
		}, log)
		if err != nil {
			panic("failed to create binance gateway: " + err.Error())
		}
		return adapter
	})
	return nil
}

// Startup verifies venue connectivity by fetching balances once.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	gw := exchangeDI.GetGateway(mono.Services())

	for _, venue := range []domain.Venue{domain.VenueSpot, domain.VenueSwap} {
		if _, err := gw.FetchBalance(ctx, venue); err != nil {
			log.Warn(ctx, "venue balance probe failed", "venue", venue, "error", err)
		}
	}

	log.Info(ctx, "exchange module started")
	return nil
}
