package domain

import (
	"testing"
	"time"

	"basisarb/internal/apperror"

	"github.com/shopspring/decimal"
)

func TestDealLifecycle(t *testing.T) {
	deal := NewDeal("BTCUSDT_BTCUSDT", SignalInputs{
		OpenRatio: decimal.RequireFromString("2.1"),
		At:        time.Now(),
	})
	if deal.Stage != StageSignal {
		t.Fatalf("stage = %s, want %s", deal.Stage, StageSignal)
	}

	if err := deal.MarkOpening(); err != nil {
		t.Fatalf("MarkOpening: %v", err)
	}
	if err := deal.MarkOpen(OpenState{
		ContractSize: decimal.NewFromInt(1),
		OpenedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("MarkOpen: %v", err)
	}
	if !deal.IsOpen() {
		t.Error("deal not open after fills")
	}
	if err := deal.MarkClosing(); err != nil {
		t.Fatalf("MarkClosing: %v", err)
	}
	// A retried exit re-enters the closing stage without error.
	if err := deal.MarkClosing(); err != nil {
		t.Fatalf("MarkClosing again: %v", err)
	}
	if !deal.IsOpen() {
		t.Error("closing deal must still report live exposure")
	}
	if err := deal.MarkClosed(CloseState{ClosedAt: time.Now()}); err != nil {
		t.Fatalf("MarkClosed: %v", err)
	}
	if deal.IsOpen() {
		t.Error("closed deal reported open")
	}
}

func TestDealRejectsOutOfOrderTransitions(t *testing.T) {
	deal := NewDeal("X_Y", SignalInputs{})

	if err := deal.MarkOpen(OpenState{}); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("MarkOpen from signal: %v", err)
	}
	if err := deal.MarkClosing(); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("MarkClosing from signal: %v", err)
	}
	if err := deal.MarkClosed(CloseState{}); !apperror.HasCode(err, apperror.CodeInvalidState) {
		t.Errorf("MarkClosed from signal: %v", err)
	}
}

func TestRatios(t *testing.T) {
	// swap bid 102 over spot ask 100 → 2% open premium.
	open := OpenRatio(decimal.RequireFromString("102"), decimal.RequireFromString("100"))
	if !open.Equal(decimal.RequireFromString("2")) {
		t.Errorf("open ratio = %s, want 2", open)
	}

	// spot bid 99 under swap ask 100 → -1% close ratio.
	closeR := CloseRatio(decimal.RequireFromString("99"), decimal.RequireFromString("100"))
	if !closeR.Equal(decimal.RequireFromString("-1")) {
		t.Errorf("close ratio = %s, want -1", closeR)
	}

	if !OpenRatio(decimal.NewFromInt(1), decimal.Zero).IsZero() {
		t.Error("zero denominator must yield zero ratio")
	}
}

func TestExtrema(t *testing.T) {
	var e Extrema
	if e.Seen() {
		t.Fatal("fresh extrema reports seen")
	}
	for _, v := range []string{"2", "-1", "5", "3"} {
		e.Observe(decimal.RequireFromString(v))
	}
	if !e.Min.Equal(decimal.RequireFromString("-1")) || !e.Max.Equal(decimal.RequireFromString("5")) {
		t.Errorf("extrema = [%s, %s], want [-1, 5]", e.Min, e.Max)
	}
}

func TestComputePnL(t *testing.T) {
	open := OpenState{
		Spot: LegFill{
			AvgPrice: decimal.RequireFromString("100"),
			Amount:   decimal.RequireFromString("2"),
			Cost:     decimal.RequireFromString("200"),
			Fee:      decimal.RequireFromString("0.2"),
		},
		Swap: LegFill{
			AvgPrice: decimal.RequireFromString("103"),
			Amount:   decimal.RequireFromString("2"),
			Cost:     decimal.RequireFromString("206"),
			Fee:      decimal.RequireFromString("0.1"),
		},
		ContractSize: decimal.NewFromInt(1),
	}

	pnl := ComputePnL(open,
		decimal.RequireFromString("101"), // spot bid now
		decimal.RequireFromString("102")) // swap ask now

	// spot: (101-100)×2 = 2; swap: (103-102)×2×1 = 2; gross 4.
	if !pnl.Gross.Equal(decimal.RequireFromString("4")) {
		t.Errorf("gross = %s, want 4", pnl.Gross)
	}
	// fees: 2×(0.2+0.1) = 0.6; net 3.4.
	if !pnl.Net.Equal(decimal.RequireFromString("3.4")) {
		t.Errorf("net = %s, want 3.4", pnl.Net)
	}
	// roi: 3.4/406×100.
	wantROI := decimal.RequireFromString("3.4").
		Div(decimal.RequireFromString("406")).
		Mul(decimal.RequireFromString("100"))
	if !pnl.ROI.Equal(wantROI) {
		t.Errorf("roi = %s, want %s", pnl.ROI, wantROI)
	}
}

func TestShouldClose(t *testing.T) {
	rules := []CloseRule{
		{OpenRatioBelow: decimal.RequireFromString("0.5"), CloseRatioAbove: decimal.RequireFromString("0.1")},
		{OpenRatioBelow: decimal.RequireFromString("1.0"), CloseRatioAbove: decimal.RequireFromString("0.5")},
	}

	tests := []struct {
		name       string
		openRatio  string
		closeRatio string
		want       bool
	}{
		{"first rule", "0.4", "0.2", true},
		{"second rule", "0.9", "0.6", true},
		{"no rule", "1.5", "0.05", false},
		{"open low close low", "0.4", "0.05", false},
		{"boundary inclusive", "0.5", "0.1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldClose(rules,
				decimal.RequireFromString(tt.openRatio),
				decimal.RequireFromString(tt.closeRatio))
			if got != tt.want {
				t.Errorf("ShouldClose = %v, want %v", got, tt.want)
			}
		})
	}
}
