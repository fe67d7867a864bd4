package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/logger"

	"github.com/shopspring/decimal"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestJournalWritesDatedEventFiles(t *testing.T) {
	root := t.TempDir()
	log := logger.New(testWriter{t}, logger.LevelError, "test", nil)

	j, err := New(root, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fixed := time.Date(2026, 9, 1, 14, 30, 5, 123_000_000, time.UTC)
	j.now = func() time.Time { return fixed }

	j.RecordOrder(context.Background(), "BTCUSDT_BTCUSDT", "open-spot", exdomain.OrderResult{
		ID:     "42",
		Venue:  exdomain.VenueSpot,
		Symbol: "BTCUSDT",
		Status: exdomain.StatusFilled,
		Filled: decimal.RequireFromString("0.5"),
	})
	j.RecordFailure(context.Background(), "BTCUSDT_BTCUSDT", "open-swap-failed", map[string]any{
		"attempts": 3,
	})

	dir := filepath.Join(root, "2026-09-01")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read date dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("files = %d, want 2", len(entries))
	}

	data, err := os.ReadFile(filepath.Join(dir, "143005.123_BTCUSDT_BTCUSDT_open-spot.json"))
	if err != nil {
		t.Fatalf("read order record: %v", err)
	}
	var record orderRecord
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decode order record: %v", err)
	}
	if record.Order.ID != "42" || record.Event != "open-spot" {
		t.Errorf("record = %+v", record)
	}
}
