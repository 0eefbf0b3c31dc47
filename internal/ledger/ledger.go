// Package ledger tracks which source sheets have been merged into the
// consolidated dataset.
//
// The ledger is loaded once per run from a persisted snapshot and appended
// to as sheets are merged. The in-memory view only changes after the
// persisted append succeeds, so a failed append never makes a sheet look
// merged.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// Appender persists one ledger entry.
type Appender interface {
	AppendLedgerEntry(ctx context.Context, entry types.LedgerEntry) error
}

// Ledger is the per-run merge ledger. It is safe for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]types.LedgerEntry
	order   []string

	appender Appender
	runID    string
	now      func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRunID stamps appended entries with the run identifier.
func WithRunID(runID string) Option {
	return func(l *Ledger) { l.runID = runID }
}

// WithClock overrides the time source used for MergedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New builds a ledger from a persisted snapshot. Later snapshot entries for
// an already seen sheet are ignored.
func New(snapshot []types.LedgerEntry, appender Appender, opts ...Option) *Ledger {
	l := &Ledger{
		entries:  make(map[string]types.LedgerEntry, len(snapshot)),
		appender: appender,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, e := range snapshot {
		if _, ok := l.entries[e.SheetID]; ok {
			continue
		}
		l.entries[e.SheetID] = e
		l.order = append(l.order, e.SheetID)
	}
	return l
}

// IsAlreadyMerged reports whether the sheet is recorded in the ledger.
func (l *Ledger) IsAlreadyMerged(sheetID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[sheetID]
	return ok
}

// Entry builds the entry that RecordMerged would append.
func (l *Ledger) Entry(sheetID, institution string) types.LedgerEntry {
	return types.LedgerEntry{
		SheetID:     sheetID,
		Institution: institution,
		MergedAt:    l.now(),
		RunID:       l.runID,
	}
}

// RecordMerged persists a ledger entry for the sheet and then adds it to
// the in-memory view.
//
// It returns ErrAlreadyMerged if the sheet is already recorded, and an
// IOError wrapping the appender's error if persistence fails. In both cases
// the in-memory view is unchanged.
func (l *Ledger) RecordMerged(ctx context.Context, sheetID, institution string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[sheetID]; ok {
		return fmt.Errorf("record %s: %w", sheetID, pkgerrors.ErrAlreadyMerged)
	}

	entry := l.Entry(sheetID, institution)
	if err := l.appender.AppendLedgerEntry(ctx, entry); err != nil {
		return pkgerrors.NewIOError("append ledger entry", sheetID, err)
	}

	l.add(entry)
	return nil
}

// MarkMerged adds an entry that was persisted by another component, such as
// an atomic merge commit.
func (l *Ledger) MarkMerged(entry types.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[entry.SheetID]; ok {
		return fmt.Errorf("mark %s: %w", entry.SheetID, pkgerrors.ErrAlreadyMerged)
	}
	l.add(entry)
	return nil
}

func (l *Ledger) add(entry types.LedgerEntry) {
	l.entries[entry.SheetID] = entry
	l.order = append(l.order, entry.SheetID)
}

// Entries returns every entry in the order it was loaded or recorded.
func (l *Ledger) Entries() []types.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]types.LedgerEntry, len(l.order))
	for i, id := range l.order {
		out[i] = l.entries[id]
	}
	return out
}

// Len returns the number of recorded sheets.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}
