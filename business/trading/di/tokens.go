// Package di contains dependency injection tokens for the trading context.
package di

import (
	"basisarb/business/trading/app"
	"basisarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Ledger   = di.NewToken[app.Ledger]("trading.Ledger")
	Journal  = di.NewToken[app.Journal]("trading.Journal")
	Executor = di.NewToken[*app.Executor]("trading.Executor")
	Reporter = di.NewToken[app.Reporter]("trading.Reporter")
)

// Helper functions for type-safe access
func GetLedger(c di.ServiceRegistry) app.Ledger {
	return di.GetToken(c, Ledger)
}

func GetJournal(c di.ServiceRegistry) app.Journal {
	return di.GetToken(c, Journal)
}

func GetExecutor(c di.ServiceRegistry) *app.Executor {
	return di.GetToken(c, Executor)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
