package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/store"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

func openSQLite(t *testing.T, exportPath string) *store.SQLStore {
	t.Helper()
	s, err := store.OpenSQL(context.Background(), config.DriverSQLite,
		filepath.Join(t.TempDir(), "sync.db"), exportPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteCommitMerge(t *testing.T) {
	ctx := context.Background()
	export := filepath.Join(t.TempDir(), "journals_access.csv")
	s := openSQLite(t, export)

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	first := []types.DatasetRow{{University: "Oxford", Journal: "Nature", ISSN: "0028-0836", Access: "1"}}
	second := []types.DatasetRow{
		{University: "Leeds", Journal: "Nature", ISSN: "0028-0836", Access: "0"},
		{University: "Leeds", Journal: "Science", ISSN: "0036-8075", Access: "1", Notes: "n"},
	}

	require.NoError(t, s.CommitMerge(ctx, first, types.LedgerEntry{SheetID: "ox", Institution: "Oxford", MergedAt: at, RunID: "r1"}))
	require.NoError(t, s.CommitMerge(ctx, second, types.LedgerEntry{SheetID: "le", Institution: "Leeds", MergedAt: at.Add(time.Minute), RunID: "r1"}))

	dataset, err := s.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, append(append([]types.DatasetRow{}, second...), first...), dataset.Rows)

	ledger, err := s.LoadLedgerSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, 2)
	assert.Equal(t, "ox", ledger[0].SheetID)
	assert.True(t, at.Equal(ledger[0].MergedAt))

	// The CSV export mirrors the database.
	f, err := os.Open(export)
	require.NoError(t, err)
	defer f.Close()
	exported, err := store.ReadDatasetCSV(f)
	require.NoError(t, err)
	assert.Equal(t, dataset.Rows, exported.Rows)
}

func TestSQLiteCommitMergeDuplicateSheetRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, "")

	rows := []types.DatasetRow{{University: "Oxford", Journal: "Nature", ISSN: "0028-0836", Access: "1"}}
	entry := types.LedgerEntry{SheetID: "ox", Institution: "Oxford", MergedAt: time.Now(), RunID: "r1"}

	require.NoError(t, s.CommitMerge(ctx, rows, entry))
	err := s.CommitMerge(ctx, rows, entry)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIO(err))

	dataset, err := s.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Len(t, dataset.Rows, 1, "rolled back merge must not add rows")
}

func TestSQLitePersistDatasetAndAppend(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t, "")

	dataset := &types.ConsolidatedDataset{Rows: sampleRows()}
	require.NoError(t, s.PersistDataset(ctx, dataset))

	loaded, err := s.LoadDataset(ctx)
	require.NoError(t, err)
	assert.Equal(t, dataset.Rows, loaded.Rows)

	entry := types.LedgerEntry{SheetID: "ox", Institution: "Oxford", MergedAt: time.Now(), RunID: "r1"}
	require.NoError(t, s.AppendLedgerEntry(ctx, entry))
	assert.Error(t, s.AppendLedgerEntry(ctx, entry))
}

func TestOpenSQLUnsupportedDriver(t *testing.T) {
	_, err := store.OpenSQL(context.Background(), "oracle", "dsn", "")
	assert.ErrorContains(t, err, "unsupported SQL driver")
}

func TestCommitMergeRollbackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := store.NewSQLStore(db, config.DriverPostgres, "")
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	entry := types.LedgerEntry{SheetID: "ox", Institution: "Oxford", MergedAt: at, RunID: "r1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO merge_ledger (sheet_id, institution, merged_at, run_id) VALUES ($1, $2, $3, $4)")).
		WithArgs("ox", "Oxford", "2026-05-01T08:00:00.000000000Z", "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(batch), 0) + 1 FROM dataset_rows")).
		WillReturnRows(sqlmock.NewRows([]string{"batch"}).AddRow(3))
	mock.ExpectExec("INSERT INTO dataset_rows").
		WithArgs(int64(3), 0, "ox", "Oxford", "Nature", "0028-0836", "1", "").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = s.CommitMerge(context.Background(),
		[]types.DatasetRow{{University: "Oxford", Journal: "Nature", ISSN: "0028-0836", Access: "1"}}, entry)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsIO(err))
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendLedgerEntryCommits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	s := store.NewSQLStore(db, config.DriverSQLite, "")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO merge_ledger (sheet_id, institution, merged_at, run_id) VALUES (?, ?, ?, ?)")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.AppendLedgerEntry(context.Background(),
		types.LedgerEntry{SheetID: "ox", Institution: "Oxford", MergedAt: time.Now(), RunID: "r1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadLedgerSnapshotQueryFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT sheet_id, institution, merged_at, run_id FROM merge_ledger").
		WillReturnError(errors.New("relation does not exist"))

	_, err = store.NewSQLStore(db, config.DriverPostgres, "").LoadLedgerSnapshot(context.Background())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsIO(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
