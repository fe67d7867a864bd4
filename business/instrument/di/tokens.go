// Package di contains dependency injection tokens for the instrument context.
package di

import (
	"basisarb/business/instrument/app"
	"basisarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Catalog = di.NewToken[*app.Service]("instrument.Catalog")
)

// Helper functions for type-safe access
func GetCatalog(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Catalog)
}
