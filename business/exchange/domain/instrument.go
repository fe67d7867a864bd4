// Package domain contains venue-facing types shared by the exchange gateway
// and the contexts that consume it.
package domain

import (
	"github.com/shopspring/decimal"
)

// Venue identifies one trading venue of the exchange. Spot and the USD-M
// perpetual market live behind different endpoints and different balance
// pools, so every gateway call is addressed to exactly one venue.
type Venue string

const (
	VenueSpot Venue = "spot"
	VenueSwap Venue = "swap"
)

// MarketKind classifies an instrument by its contract type.
type MarketKind string

const (
	KindSpot   MarketKind = "spot"
	KindSwap   MarketKind = "swap"
	KindFuture MarketKind = "future"
	KindOption MarketKind = "option"
)

// Instrument describes one tradable market on one venue, normalized from the
// venue's exchange-info payload.
type Instrument struct {
	Venue  Venue
	Symbol string
	Kind   MarketKind
	Base   string
	Quote  string
	// Settle is the settlement asset for derivatives; empty on spot markets.
	Settle string
	// Linear reports whether a derivative settles in its quote asset.
	Linear bool
	Active bool

	// ContractSize is base units per contract; one for spot markets.
	ContractSize decimal.Decimal
	AmountStep   decimal.Decimal
	PriceStep    decimal.Decimal
	MinAmount    decimal.Decimal
	MinCost      decimal.Decimal
	TakerFee     decimal.Decimal
}

// Key returns the venue-qualified identifier used for instrument lookups.
func (i Instrument) Key() string {
	return string(i.Venue) + ":" + i.Symbol
}

// Tradable reports whether the instrument accepts new orders.
func (i Instrument) Tradable() bool {
	return i.Active
}
