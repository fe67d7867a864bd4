// Package di contains dependency injection tokens for the exchange context.
package di

import (
	"basisarb/business/exchange/app"
	"basisarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Gateway = di.NewToken[app.Gateway]("exchange.Gateway")
)

// Helper functions for type-safe access
func GetGateway(c di.ServiceRegistry) app.Gateway {
	return di.GetToken(c, Gateway)
}
