// Package domain contains balance types for the account context.
package domain

import (
	"time"

	exdomain "basisarb/business/exchange/domain"

	"github.com/shopspring/decimal"
)

// BalanceSnapshot is the tracked free quote-currency balance of one venue.
type BalanceSnapshot struct {
	Venue     exdomain.Venue
	Asset     string
	Free      decimal.Decimal
	UpdatedAt time.Time
}

// Valid reports whether the snapshot is usable for sizing: present and
// strictly positive.
func (s BalanceSnapshot) Valid() bool {
	return !s.UpdatedAt.IsZero() && s.Free.IsPositive()
}
