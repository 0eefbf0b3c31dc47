// =============================================================================
// Journal Access Sync - SQL Store
// =============================================================================
//
// SQLStore keeps the consolidated dataset and the merge ledger in one SQL
// database, SQLite (modernc.org/sqlite) or Postgres (lib/pq).
//
// TABLES:
//   dataset_rows  one row per merged journal record; batch orders merges,
//                 position keeps the order within one merge
//   merge_ledger  one row per merged sheet, sheet_id is the primary key
//
// CommitMerge writes a sheet's rows and its ledger entry in one transaction,
// so a sheet is either fully merged and recorded or not at all. After every
// commit the dataset is exported to the configured CSV file for consumers
// that read the file directly.
//
// =============================================================================

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/logging"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// timeLayout is fixed width so merged_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dialect holds the per-database differences.
type dialect struct {
	driverName string
	schema     []string
	positional bool
}

var dialects = map[string]dialect{
	config.DriverSQLite: {
		driverName: "sqlite",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS dataset_rows (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				batch INTEGER NOT NULL,
				position INTEGER NOT NULL,
				sheet_id TEXT NOT NULL,
				university TEXT NOT NULL,
				journal TEXT NOT NULL,
				issn TEXT NOT NULL,
				access TEXT NOT NULL,
				notes TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS merge_ledger (
				sheet_id TEXT PRIMARY KEY,
				institution TEXT NOT NULL,
				merged_at TEXT NOT NULL,
				run_id TEXT NOT NULL
			)`,
		},
	},
	config.DriverPostgres: {
		driverName: "postgres",
		positional: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS dataset_rows (
				id BIGSERIAL PRIMARY KEY,
				batch BIGINT NOT NULL,
				position INTEGER NOT NULL,
				sheet_id TEXT NOT NULL,
				university TEXT NOT NULL,
				journal TEXT NOT NULL,
				issn TEXT NOT NULL,
				access TEXT NOT NULL,
				notes TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS merge_ledger (
				sheet_id TEXT PRIMARY KEY,
				institution TEXT NOT NULL,
				merged_at TEXT NOT NULL,
				run_id TEXT NOT NULL
			)`,
		},
	},
}

// rebind converts ? placeholders to $1, $2, ... for Postgres.
func (d dialect) rebind(query string) string {
	if !d.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// SQLStore implements the dataset and ledger stores on database/sql.
type SQLStore struct {
	db         *sql.DB
	dialect    dialect
	exportPath string
}

// OpenSQL opens the database for driver ("sqlite" or "postgres"), creates
// the tables if needed and returns the store.
//
// PARAMETERS:
//   - driver: config.DriverSQLite or config.DriverPostgres.
//   - dsn: The connection string.
//   - exportPath: The dataset CSV written after every commit; "" disables it.
func OpenSQL(ctx context.Context, driver, dsn, exportPath string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == config.DriverSQLite {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	s := NewSQLStore(db, driver, exportPath)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. The tables must exist or be created
// with Migrate.
func NewSQLStore(db *sql.DB, driver, exportPath string) *SQLStore {
	d, ok := dialects[driver]
	if !ok {
		d = dialects[config.DriverSQLite]
	}
	return &SQLStore{db: db, dialect: d, exportPath: exportPath}
}

// Migrate creates the tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// DATASET
// =============================================================================

// LoadDataset returns every merged row, newest merge first.
func (s *SQLStore) LoadDataset(ctx context.Context) (*types.ConsolidatedDataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT university, journal, issn, access, notes FROM dataset_rows ORDER BY batch DESC, position ASC`)
	if err != nil {
		return nil, pkgerrors.NewIOError("load dataset", "dataset_rows", err)
	}
	defer rows.Close()

	dataset := &types.ConsolidatedDataset{}
	for rows.Next() {
		var r types.DatasetRow
		if err := rows.Scan(&r.University, &r.Journal, &r.ISSN, &r.Access, &r.Notes); err != nil {
			return nil, pkgerrors.NewIOError("load dataset", "dataset_rows", err)
		}
		dataset.Rows = append(dataset.Rows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewIOError("load dataset", "dataset_rows", err)
	}
	return dataset, nil
}

// PersistDataset replaces the stored dataset with the given one. The engine
// only calls it for stores without CommitMerge; it is kept for imports and
// repairs.
func (s *SQLStore) PersistDataset(ctx context.Context, dataset *types.ConsolidatedDataset) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM dataset_rows`); err != nil {
			return err
		}
		if dataset == nil {
			return nil
		}
		return s.insertRows(ctx, tx, 1, "", dataset.Rows)
	})
	if err != nil {
		return pkgerrors.NewIOError("persist dataset", "dataset_rows", err)
	}
	s.export(ctx)
	return nil
}

// CommitMerge inserts the sheet's ledger entry and rows in one transaction,
// ahead of every previously merged row.
func (s *SQLStore) CommitMerge(ctx context.Context, rows []types.DatasetRow, entry types.LedgerEntry) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertLedger(ctx, tx, entry); err != nil {
			return err
		}

		var batch int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(batch), 0) + 1 FROM dataset_rows`).Scan(&batch); err != nil {
			return err
		}

		return s.insertRows(ctx, tx, batch, entry.SheetID, rows)
	})
	if err != nil {
		return pkgerrors.NewIOError("commit merge", entry.SheetID, err)
	}
	s.export(ctx)
	return nil
}

func (s *SQLStore) insertRows(ctx context.Context, tx *sql.Tx, batch int64, sheetID string, rows []types.DatasetRow) error {
	query := s.dialect.rebind(`INSERT INTO dataset_rows
		(batch, position, sheet_id, university, journal, issn, access, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, r := range rows {
		if _, err := tx.ExecContext(ctx, query,
			batch, i, sheetID, r.University, r.Journal, r.ISSN, r.Access, r.Notes); err != nil {
			return err
		}
	}
	return nil
}

// export writes the dataset CSV. The database is the source of truth, so a
// failed export is logged and the next commit retries it.
func (s *SQLStore) export(ctx context.Context) {
	if s.exportPath == "" {
		return
	}
	dataset, err := s.LoadDataset(ctx)
	if err == nil {
		err = ExportDatasetCSV(s.exportPath, dataset)
	}
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("path", s.exportPath).Msg("dataset export failed")
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// LoadLedgerSnapshot returns every ledger entry in merge order.
func (s *SQLStore) LoadLedgerSnapshot(ctx context.Context) ([]types.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sheet_id, institution, merged_at, run_id FROM merge_ledger ORDER BY merged_at ASC, sheet_id ASC`)
	if err != nil {
		return nil, pkgerrors.NewIOError("load ledger", "merge_ledger", err)
	}
	defer rows.Close()

	var entries []types.LedgerEntry
	for rows.Next() {
		var e types.LedgerEntry
		var mergedAt string
		if err := rows.Scan(&e.SheetID, &e.Institution, &mergedAt, &e.RunID); err != nil {
			return nil, pkgerrors.NewIOError("load ledger", "merge_ledger", err)
		}
		if e.MergedAt, err = time.Parse(timeLayout, mergedAt); err != nil {
			return nil, pkgerrors.NewIOError("load ledger", e.SheetID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewIOError("load ledger", "merge_ledger", err)
	}
	return entries, nil
}

// AppendLedgerEntry inserts one entry. A second entry for the same sheet
// violates the primary key and is returned as an error.
func (s *SQLStore) AppendLedgerEntry(ctx context.Context, entry types.LedgerEntry) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertLedger(ctx, tx, entry)
	})
	if err != nil {
		return pkgerrors.NewIOError("append ledger", entry.SheetID, err)
	}
	return nil
}

func (s *SQLStore) insertLedger(ctx context.Context, tx *sql.Tx, entry types.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		s.dialect.rebind(`INSERT INTO merge_ledger (sheet_id, institution, merged_at, run_id) VALUES (?, ?, ?, ?)`),
		entry.SheetID, entry.Institution, entry.MergedAt.UTC().Format(timeLayout), entry.RunID)
	return err
}

// inTx runs fn in a transaction, committing on success and rolling back on
// any error.
func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
