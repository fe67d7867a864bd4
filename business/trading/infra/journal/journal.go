// Package journal writes the append-only audit trail: one JSON file per
// order or failure event, partitioned into per-date directories. The live
// engine never reads these files back.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	exdomain "basisarb/business/exchange/domain"
	"basisarb/internal/logger"
)

// DirJournal implements app.Journal on a plain directory tree:
//
//	<root>/<YYYY-MM-DD>/<HHMMSS.mmm>_<pair>_<event>.json
type DirJournal struct {
	root string
	log  logger.LoggerInterface
	now  func() time.Time
}

// New creates the journal root if needed.
func New(root string, log logger.LoggerInterface) (*DirJournal, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create journal root %s: %w", root, err)
	}
	return &DirJournal{root: root, log: log, now: time.Now}, nil
}

type orderRecord struct {
	PairKey string               `json:"pair_key"`
	Event   string               `json:"event"`
	Order   exdomain.OrderResult `json:"order"`
	At      time.Time            `json:"at"`
}

type failureRecord struct {
	PairKey string         `json:"pair_key"`
	Event   string         `json:"event"`
	Details map[string]any `json:"details"`
	At      time.Time      `json:"at"`
}

// RecordOrder implements app.Journal. Audit writes are best-effort: a
// failure is logged but never interrupts trading.
func (j *DirJournal) RecordOrder(ctx context.Context, pairKey string, event string, order exdomain.OrderResult) {
	j.write(ctx, pairKey, event, orderRecord{
		PairKey: pairKey,
		Event:   event,
		Order:   order,
		At:      j.now().UTC(),
	})
}

// RecordFailure implements app.Journal.
func (j *DirJournal) RecordFailure(ctx context.Context, pairKey string, event string, details map[string]any) {
	j.write(ctx, pairKey, event, failureRecord{
		PairKey: pairKey,
		Event:   event,
		Details: details,
		At:      j.now().UTC(),
	})
}

func (j *DirJournal) write(ctx context.Context, pairKey, event string, record any) {
	now := j.now().UTC()
	dir := filepath.Join(j.root, now.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		j.log.Error(ctx, "journal dir create failed", "dir", dir, "error", err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		now.Format("150405.000"), sanitize(pairKey), sanitize(event))
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		j.log.Error(ctx, "journal encode failed", "event", event, "error", err)
		return
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		j.log.Error(ctx, "journal write failed", "file", name, "error", err)
	}
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
