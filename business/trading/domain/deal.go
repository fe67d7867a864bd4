// Package domain contains deal lifecycle, ratio and PnL types for the
// trading context.
package domain

import (
	"time"

	"basisarb/internal/apperror"

	"github.com/shopspring/decimal"
)

// Stage is the lifecycle stage of a Deal. Stage-specific state lives in the
// variant structs; a field is only meaningful when its stage is reached.
type Stage string

const (
	StageSignal  Stage = "signal"
	StageOpening Stage = "opening"
	StageOpen    Stage = "open"
	StageClosing Stage = "closing"
	StageClosed  Stage = "closed"
	StageFailed  Stage = "failed"
)

// LegFill records one leg's realized execution.
type LegFill struct {
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Amount   decimal.Decimal `json:"amount"`
	Cost     decimal.Decimal `json:"cost"`
	// Fee is the leg's fee expressed in quote currency.
	Fee decimal.Decimal `json:"fee"`
}

// SignalInputs are the market readings that triggered the deal.
type SignalInputs struct {
	OpenRatio decimal.Decimal `json:"open_ratio"`
	SpotAsk   decimal.Decimal `json:"spot_ask"`
	SwapBid   decimal.Decimal `json:"swap_bid"`
	At        time.Time       `json:"at"`
}

// OpenState is the realized two-leg position, valid from StageOpen.
type OpenState struct {
	Spot         LegFill         `json:"spot"`
	Swap         LegFill         `json:"swap"`
	ContractSize decimal.Decimal `json:"contract_size"`
	OpenedAt     time.Time       `json:"opened_at"`
}

// Invested is the capital committed at open, in quote currency.
func (o OpenState) Invested() decimal.Decimal {
	return o.Spot.Cost.Add(o.Swap.Cost)
}

// CloseState records the closing fills and the final outcome, valid from
// StageClosed.
type CloseState struct {
	Spot     LegFill         `json:"spot"`
	Swap     LegFill         `json:"swap"`
	GrossPnL decimal.Decimal `json:"gross_pnl"`
	NetPnL   decimal.Decimal `json:"net_pnl"`
	ROI      decimal.Decimal `json:"roi"`
	ClosedAt time.Time       `json:"closed_at"`
}

// Deal is one arbitrage position keyed by its pair. At most one Deal exists
// per pair at a time.
type Deal struct {
	PairKey string       `json:"pair_key"`
	Stage   Stage        `json:"stage"`
	Signal  SignalInputs `json:"signal"`
	Open    *OpenState   `json:"open,omitempty"`
	Close   *CloseState  `json:"close,omitempty"`
}

// NewDeal starts a deal at the signal stage.
func NewDeal(pairKey string, signal SignalInputs) *Deal {
	return &Deal{PairKey: pairKey, Stage: StageSignal, Signal: signal}
}

// MarkOpening transitions Signal → Opening.
func (d *Deal) MarkOpening() error {
	if d.Stage != StageSignal {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContextf("deal %s: cannot open from %s", d.PairKey, d.Stage))
	}
	d.Stage = StageOpening
	return nil
}

// MarkOpen transitions Opening → Open with the realized fills.
func (d *Deal) MarkOpen(open OpenState) error {
	if d.Stage != StageOpening {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContextf("deal %s: cannot record fills from %s", d.PairKey, d.Stage))
	}
	d.Stage = StageOpen
	d.Open = &open
	return nil
}

// MarkClosing transitions Open → Closing. A deal already at Closing stays
// there, so an exit interrupted mid-flight can be resumed after restart.
func (d *Deal) MarkClosing() error {
	if d.Stage == StageClosing {
		return nil
	}
	if d.Stage != StageOpen {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContextf("deal %s: cannot close from %s", d.PairKey, d.Stage))
	}
	d.Stage = StageClosing
	return nil
}

// MarkClosed transitions Closing → Closed with the final outcome.
func (d *Deal) MarkClosed(closeState CloseState) error {
	if d.Stage != StageClosing {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContextf("deal %s: cannot finalize from %s", d.PairKey, d.Stage))
	}
	d.Stage = StageClosed
	d.Close = &closeState
	return nil
}

// MarkFailed is terminal from any stage.
func (d *Deal) MarkFailed() {
	d.Stage = StageFailed
}

// IsOpen reports whether the deal holds live exposure.
func (d *Deal) IsOpen() bool {
	return d.Stage == StageOpen || d.Stage == StageClosing
}
