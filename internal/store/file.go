// =============================================================================
// Journal Access Sync - File Store
// =============================================================================
//
// FileStore keeps the consolidated dataset and the merge ledger in local
// files:
//   - Dataset: CSV with header university,journal,issn,access,notes,
//     newest rows first, replaced atomically on every persist
//   - Ledger:  append-only CSV (sheet_id,institution,merged_at,run_id) or
//     JSON Lines, one entry per merged sheet
//
// The dataset and the ledger are two separate files, so a merge and its
// ledger append are not atomic. Use the SQL store when that matters.
//
// =============================================================================

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/csvparser"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
	"github.com/ginjaninja78/journal-access-sync/pkg/utils"
)

// LedgerColumns is the header of the CSV ledger file.
var LedgerColumns = []string{"sheet_id", "institution", "merged_at", "run_id"}

// FileStore implements the dataset and ledger stores on local files.
type FileStore struct {
	datasetPath  string
	ledgerPath   string
	ledgerFormat string
}

// NewFileStore creates a file store. ledgerFormat is config.LedgerFormatCSV
// or config.LedgerFormatJSON.
func NewFileStore(datasetPath, ledgerPath, ledgerFormat string) *FileStore {
	if ledgerFormat == "" {
		ledgerFormat = config.LedgerFormatCSV
	}
	return &FileStore{
		datasetPath:  datasetPath,
		ledgerPath:   ledgerPath,
		ledgerFormat: ledgerFormat,
	}
}

// =============================================================================
// DATASET
// =============================================================================

// LoadDataset reads the dataset file. A missing file is an empty dataset.
func (s *FileStore) LoadDataset(_ context.Context) (*types.ConsolidatedDataset, error) {
	f, err := os.Open(s.datasetPath)
	if os.IsNotExist(err) {
		return &types.ConsolidatedDataset{}, nil
	}
	if err != nil {
		return nil, pkgerrors.NewIOError("open dataset", s.datasetPath, err)
	}
	defer f.Close()

	dataset, err := ReadDatasetCSV(f)
	if err != nil {
		return nil, pkgerrors.NewIOError("read dataset", s.datasetPath, err)
	}
	return dataset, nil
}

// PersistDataset replaces the dataset file.
func (s *FileStore) PersistDataset(_ context.Context, dataset *types.ConsolidatedDataset) error {
	if err := ExportDatasetCSV(s.datasetPath, dataset); err != nil {
		return pkgerrors.NewIOError("persist dataset", s.datasetPath, err)
	}
	return nil
}

// ReadDatasetCSV parses dataset CSV content. The header must equal
// types.DatasetColumns.
func ReadDatasetCSV(r io.Reader) (*types.ConsolidatedDataset, error) {
	table, err := csvparser.ParseReader(r, config.CSVSettings{Delimiter: ",", Encoding: "UTF-8"})
	if err != nil {
		return nil, err
	}
	if !equalHeader(table.Headers, types.DatasetColumns) {
		return nil, fmt.Errorf("unexpected dataset header %v, want %v", table.Headers, types.DatasetColumns)
	}

	dataset := &types.ConsolidatedDataset{Rows: make([]types.DatasetRow, 0, len(table.Rows))}
	for i, row := range table.Rows {
		if len(row) != len(types.DatasetColumns) {
			return nil, fmt.Errorf("dataset row %d has %d fields, want %d", i+1, len(row), len(types.DatasetColumns))
		}
		dataset.Rows = append(dataset.Rows, types.DatasetRow{
			University: row[0],
			Journal:    row[1],
			ISSN:       row[2],
			Access:     row[3],
			Notes:      row[4],
		})
	}
	return dataset, nil
}

// WriteDatasetCSV renders the dataset as CSV, header first.
func WriteDatasetCSV(w io.Writer, dataset *types.ConsolidatedDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(types.DatasetColumns); err != nil {
		return err
	}
	if dataset != nil {
		for _, row := range dataset.Rows {
			if err := cw.Write(row.Fields()); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportDatasetCSV atomically replaces path with the dataset CSV.
func ExportDatasetCSV(path string, dataset *types.ConsolidatedDataset) error {
	return utils.WriteFileAtomic(path, func(w io.Writer) error {
		return WriteDatasetCSV(w, dataset)
	})
}

// =============================================================================
// LEDGER
// =============================================================================

// ledgerRecord is the JSON Lines form of a ledger entry.
type ledgerRecord struct {
	SheetID     string    `json:"sheet_id"`
	Institution string    `json:"institution"`
	MergedAt    time.Time `json:"merged_at"`
	RunID       string    `json:"run_id,omitempty"`
}

// LoadLedgerSnapshot reads every ledger entry. A missing file is an empty
// ledger.
func (s *FileStore) LoadLedgerSnapshot(_ context.Context) ([]types.LedgerEntry, error) {
	f, err := os.Open(s.ledgerPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.NewIOError("open ledger", s.ledgerPath, err)
	}
	defer f.Close()

	var entries []types.LedgerEntry
	if s.ledgerFormat == config.LedgerFormatJSON {
		entries, err = readLedgerJSON(f)
	} else {
		entries, err = readLedgerCSV(f)
	}
	if err != nil {
		return nil, pkgerrors.NewIOError("read ledger", s.ledgerPath, err)
	}
	return entries, nil
}

// AppendLedgerEntry appends one entry and syncs the file.
func (s *FileStore) AppendLedgerEntry(_ context.Context, entry types.LedgerEntry) error {
	if err := s.appendLedger(entry); err != nil {
		return pkgerrors.NewIOError("append ledger", s.ledgerPath, err)
	}
	return nil
}

func (s *FileStore) appendLedger(entry types.LedgerEntry) error {
	if err := os.MkdirAll(filepath.Dir(s.ledgerPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(s.ledgerPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	if s.ledgerFormat == config.LedgerFormatJSON {
		line, err := json.Marshal(ledgerRecord(entry))
		if err != nil {
			return err
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return err
		}
	} else {
		cw := csv.NewWriter(f)
		if info.Size() == 0 {
			if err := cw.Write(LedgerColumns); err != nil {
				return err
			}
		}
		if err := cw.Write([]string{
			entry.SheetID,
			entry.Institution,
			entry.MergedAt.UTC().Format(time.RFC3339Nano),
			entry.RunID,
		}); err != nil {
			return err
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}

	return f.Sync()
}

func readLedgerCSV(r io.Reader) ([]types.LedgerEntry, error) {
	table, err := csvparser.ParseReader(r, config.CSVSettings{Delimiter: ",", Encoding: "UTF-8"})
	if err != nil {
		return nil, err
	}
	if !equalHeader(table.Headers, LedgerColumns) {
		return nil, fmt.Errorf("unexpected ledger header %v, want %v", table.Headers, LedgerColumns)
	}

	entries := make([]types.LedgerEntry, 0, len(table.Rows))
	for i, row := range table.Rows {
		if len(row) != len(LedgerColumns) {
			return nil, fmt.Errorf("ledger row %d has %d fields, want %d", i+1, len(row), len(LedgerColumns))
		}
		mergedAt, err := time.Parse(time.RFC3339Nano, row[2])
		if err != nil {
			return nil, fmt.Errorf("ledger row %d: %w", i+1, err)
		}
		entries = append(entries, types.LedgerEntry{
			SheetID:     row[0],
			Institution: row[1],
			MergedAt:    mergedAt,
			RunID:       row[3],
		})
	}
	return entries, nil
}

func readLedgerJSON(r io.Reader) ([]types.LedgerEntry, error) {
	var entries []types.LedgerEntry
	dec := json.NewDecoder(r)
	for line := 1; ; line++ {
		var rec ledgerRecord
		err := dec.Decode(&rec)
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, fmt.Errorf("ledger entry %d: %w", line, err)
		}
		entries = append(entries, types.LedgerEntry(rec))
	}
}

func equalHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
