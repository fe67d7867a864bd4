// Package trading implements the deal lifecycle bounded context: per-pair
// signal engines, the two-leg executor and durable deal state.
package trading

import (
	"context"
	"fmt"

	accountapp "basisarb/business/account/app"
	accountDI "basisarb/business/account/di"
	exchangeDI "basisarb/business/exchange/di"
	exdomain "basisarb/business/exchange/domain"
	instrumentDI "basisarb/business/instrument/di"
	marketapp "basisarb/business/market/app"
	"basisarb/business/trading/app"
	tradingDI "basisarb/business/trading/di"
	"basisarb/business/trading/domain"
	"basisarb/business/trading/infra/journal"
	"basisarb/business/trading/infra/ledger"
	"basisarb/business/trading/infra/report"
	"basisarb/internal/config"
	"basisarb/internal/di"
	"basisarb/internal/logger"
	"basisarb/internal/monolith"
	"basisarb/internal/notify"

	"github.com/shopspring/decimal"
)

// Module implements the trading bounded context.
type Module struct{}

// RegisterServices registers the ledger, journal, executor and reporter with
// the DI container. The file-backed services are built eagerly so that an
// unusable data directory fails wiring instead of the first trade.
func (m *Module) RegisterServices(c di.Container) error {
	cfg := c.Get("config").(*config.Config)
	log := c.Get("logger").(logger.LoggerInterface)

	fileLedger, err := ledger.New(cfg.Ledger.Path, cfg.Arbitrage.MaxActiveDeals)
	if err != nil {
		return fmt.Errorf("open deal ledger: %w", err)
	}
	dirJournal, err := journal.New(cfg.Ledger.AuditDir, log)
	if err != nil {
		return fmt.Errorf("open audit journal: %w", err)
	}

	di.RegisterToken(c, tradingDI.Ledger, func(di.ServiceRegistry) app.Ledger {
		return fileLedger
	})
	di.RegisterToken(c, tradingDI.Journal, func(di.ServiceRegistry) app.Journal {
		return dirJournal
	})
	di.RegisterToken(c, tradingDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		if cfg.App.TUIMode {
			return report.NewTUIReporter()
		}
		return report.NewConsoleReporter(sr.Get("logger").(logger.LoggerInterface))
	})
	di.RegisterToken(c, tradingDI.Executor, func(sr di.ServiceRegistry) *app.Executor {
		return app.NewExecutor(app.ExecutorConfig{
			OrderRetries:   cfg.Execution.OrderRetries,
			RetryDelay:     cfg.Execution.OrderRetryDelay,
			LimitPremium:   cfg.Execution.PremiumDecimal(),
			SettleWait:     cfg.Execution.SettleWait,
			FeePriceMaxAge: cfg.Execution.FeePriceMaxAge,
			QuoteAsset:     cfg.Arbitrage.QuoteAsset,
		},
			exchangeDI.GetGateway(sr),
			tradingDI.GetLedger(sr),
			tradingDI.GetJournal(sr),
			sr.Get("notifier").(*notify.Notifier),
			log)
	})
	return nil
}

// Startup spawns one signal engine per catalog pair under the supervisor.
// Deals recovered from the ledger whose pair has left the catalog are
// reported and left untouched for manual resolution.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	log := mono.Logger()
	services := mono.Services()

	gateway := exchangeDI.GetGateway(services)
	catalog := instrumentDI.GetCatalog(services)
	registry := accountDI.GetRegistry(services)
	dealLedger := tradingDI.GetLedger(services)
	executor := tradingDI.GetExecutor(services)
	reporter := tradingDI.GetReporter(services)

	volume := registryVolume{registry: registry}
	factory := func(venue exdomain.Venue, symbol string) app.QuoteStream {
		return marketapp.NewSubscriber(marketapp.SubscriberConfig{
			Venue:    venue,
			Symbol:   symbol,
			Notional: volume.MaxDealVolume(),
		}, gateway, log)
	}

	rules := make([]domain.CloseRule, 0, len(cfg.Arbitrage.CloseRules))
	for _, r := range cfg.Arbitrage.CloseRules {
		rules = append(rules, domain.CloseRule{
			OpenRatioBelow:  decimal.NewFromFloat(r.OpenRatioBelow),
			CloseRatioAbove: decimal.NewFromFloat(r.CloseRatioAbove),
		})
	}
	engineCfg := app.EngineConfig{
		OpenThreshold:  cfg.Arbitrage.OpenRatioDecimal(),
		MaxActiveDeals: cfg.Arbitrage.MaxActiveDeals,
		CloseRules:     rules,
	}

	for _, deal := range dealLedger.All() {
		if _, ok := catalog.Pair(deal.PairKey); !ok && deal.IsOpen() {
			log.Error(ctx, "recovered deal has no tradable pair, manual close required",
				"pair", deal.PairKey, "stage", deal.Stage)
		}
	}

	pairs := catalog.Pairs()
	for _, pair := range pairs {
		engine := app.NewEngine(pair, engineCfg, factory, executor,
			dealLedger, volume, reporter, mono.Supervisor(), log)
		name := fmt.Sprintf("engine-%s", pair.Key)
		if err := mono.Supervisor().Add(ctx, name, engine.Run); err != nil {
			return fmt.Errorf("supervise %s: %w", name, err)
		}
	}

	log.Info(ctx, "trading module started",
		"engines", len(pairs), "open_deals", dealLedger.Len())
	return nil
}

// registryVolume adapts the balance registry to the engine's volume port,
// recomputing the cap from live snapshots on every read.
type registryVolume struct {
	registry *accountapp.Registry
}

func (v registryVolume) MaxDealVolume() decimal.Decimal {
	vol, err := v.registry.RecomputeMaxDealVolume()
	if err != nil {
		return decimal.Zero
	}
	return vol
}
