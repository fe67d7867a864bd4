// Package di contains dependency injection tokens for the account context.
package di

import (
	"basisarb/business/account/app"
	"basisarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registry = di.NewToken[*app.Registry]("account.Registry")
)

// Helper functions for type-safe access
func GetRegistry(c di.ServiceRegistry) *app.Registry {
	return di.GetToken(c, Registry)
}
