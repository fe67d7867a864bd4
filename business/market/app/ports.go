// Package app contains the market-data application services.
package app

import (
	"context"

	exdomain "basisarb/business/exchange/domain"
)

// BookSource is the slice of the exchange gateway the market context
// consumes: a depth stream per venue symbol.
type BookSource interface {
	WatchOrderBook(ctx context.Context, venue exdomain.Venue, symbol string) (<-chan exdomain.BookSnapshot, error)
}
