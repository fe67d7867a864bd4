// Package ledger persists deals as a single JSON document with atomic
// replace-on-write semantics.
package ledger

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"basisarb/business/trading/domain"
	"basisarb/internal/apperror"
)

// FileLedger mirrors an in-memory deal map to one on-disk JSON document.
// Every mutation writes a temp file in the same directory and renames it
// over the document, so a crash never leaves a partial file behind.
type FileLedger struct {
	path    string
	maxSize int

	mu    sync.Mutex
	deals map[string]*domain.Deal
}

// New opens the ledger at path, creating parent directories, and reloads
// any deals persisted by a previous run.
func New(path string, maxSize int) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeLedgerReadFailed,
			apperror.WithContextf("create ledger dir for %s", path))
	}

	l := &FileLedger{
		path:    path,
		maxSize: maxSize,
		deals:   make(map[string]*domain.Deal),
	}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLedger) reload() error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return apperror.Wrap(err, apperror.CodeLedgerReadFailed,
			apperror.WithContextf("read %s", l.path))
	}
	if len(data) == 0 {
		return nil
	}

	var deals map[string]*domain.Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return apperror.Wrap(err, apperror.CodeLedgerReadFailed,
			apperror.WithContextf("decode %s", l.path))
	}
	l.deals = deals
	return nil
}

// Put implements app.Ledger. The file write happens before the in-memory
// commit; on write failure memory is left untouched.
func (l *FileLedger) Put(deal *domain.Deal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.deals[deal.PairKey]; !exists && l.maxSize > 0 && len(l.deals) >= l.maxSize {
		return apperror.New(apperror.CodeLedgerFull,
			apperror.WithContextf("%d deals at cap %d", len(l.deals), l.maxSize))
	}

	next := make(map[string]*domain.Deal, len(l.deals)+1)
	for k, v := range l.deals {
		next[k] = v
	}
	next[deal.PairKey] = deal

	if err := l.flush(next); err != nil {
		return err
	}
	l.deals = next
	return nil
}

// Remove implements app.Ledger.
func (l *FileLedger) Remove(pairKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.deals[pairKey]; !exists {
		return nil
	}

	next := make(map[string]*domain.Deal, len(l.deals))
	for k, v := range l.deals {
		if k != pairKey {
			next[k] = v
		}
	}
	if err := l.flush(next); err != nil {
		return err
	}
	l.deals = next
	return nil
}

// Get implements app.Ledger.
func (l *FileLedger) Get(pairKey string) (*domain.Deal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	deal, ok := l.deals[pairKey]
	return deal, ok
}

// Len implements app.Ledger.
func (l *FileLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.deals)
}

// All implements app.Ledger.
func (l *FileLedger) All() []*domain.Deal {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*domain.Deal, 0, len(l.deals))
	for _, d := range l.deals {
		out = append(out, d)
	}
	return out
}

// flush writes the full map to a sibling temp file, fsyncs, and renames it
// over the document.
func (l *FileLedger) flush(deals map[string]*domain.Deal) error {
	data, err := json.MarshalIndent(deals, "", "  ")
	if err != nil {
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContext("encode deals"))
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContext("create temp file"))
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContextf("write %s", tmpName))
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContextf("sync %s", tmpName))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContextf("close %s", tmpName))
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return apperror.Wrap(err, apperror.CodeLedgerWriteFailed,
			apperror.WithContextf("rename to %s", l.path))
	}
	return nil
}
