package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/ledger"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

type fakeAppender struct {
	entries []types.LedgerEntry
	err     error
}

func (f *fakeAppender) AppendLedgerEntry(_ context.Context, entry types.LedgerEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func TestNewFromSnapshot(t *testing.T) {
	l := ledger.New([]types.LedgerEntry{
		{SheetID: "a", Institution: "A"},
		{SheetID: "b", Institution: "B"},
		{SheetID: "a", Institution: "A again"},
	}, &fakeAppender{})

	assert.True(t, l.IsAlreadyMerged("a"))
	assert.True(t, l.IsAlreadyMerged("b"))
	assert.False(t, l.IsAlreadyMerged("c"))
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "A", l.Entries()[0].Institution)
}

func TestRecordMerged(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	app := &fakeAppender{}
	l := ledger.New(nil, app, ledger.WithRunID("run-1"), ledger.WithClock(func() time.Time { return at }))

	require.NoError(t, l.RecordMerged(context.Background(), "s1", "Oxford"))

	assert.True(t, l.IsAlreadyMerged("s1"))
	require.Len(t, app.entries, 1)
	assert.Equal(t, types.LedgerEntry{SheetID: "s1", Institution: "Oxford", MergedAt: at, RunID: "run-1"}, app.entries[0])
}

func TestRecordMergedTwice(t *testing.T) {
	app := &fakeAppender{}
	l := ledger.New(nil, app)

	require.NoError(t, l.RecordMerged(context.Background(), "s1", "Oxford"))
	err := l.RecordMerged(context.Background(), "s1", "Oxford")

	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyMerged)
	assert.Len(t, app.entries, 1)
}

func TestRecordMergedAppendFailure(t *testing.T) {
	cause := errors.New("disk full")
	l := ledger.New(nil, &fakeAppender{err: cause})

	err := l.RecordMerged(context.Background(), "s1", "Oxford")

	require.Error(t, err)
	assert.True(t, pkgerrors.IsIO(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, l.IsAlreadyMerged("s1"))
	assert.Equal(t, 0, l.Len())
}

func TestMarkMerged(t *testing.T) {
	l := ledger.New(nil, &fakeAppender{err: errors.New("unused")})
	entry := l.Entry("s1", "Oxford")

	require.NoError(t, l.MarkMerged(entry))
	assert.True(t, l.IsAlreadyMerged("s1"))
	assert.ErrorIs(t, l.MarkMerged(entry), pkgerrors.ErrAlreadyMerged)
}
