package sources

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/csvparser"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/xlsxparser"
)

// FileRegistry loads the canonical journal registry from a CSV or XLSX
// file. Only the journal and issn columns are read; any other columns are
// ignored.
type FileRegistry struct {
	path        string
	csvSettings config.CSVSettings
}

// NewFileRegistry creates a registry source for path.
func NewFileRegistry(path string, csvSettings config.CSVSettings) *FileRegistry {
	return &FileRegistry{path: path, csvSettings: csvSettings}
}

// FetchRegistry reads the registry file. Rows whose journal and issn are
// both empty are dropped; every other row becomes an entry as written, and
// validation of the entries is left to the caller.
func (r *FileRegistry) FetchRegistry(_ context.Context) (*types.CanonicalRegistry, error) {
	var (
		headers []string
		rows    [][]string
	)

	switch strings.ToLower(filepath.Ext(r.path)) {
	case ".xlsx":
		table, err := xlsxparser.Parse(r.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry %s: %w", r.path, err)
		}
		headers, rows = table.Headers, table.Rows
	default:
		table, err := csvparser.Parse(r.path, r.csvSettings)
		if err != nil {
			return nil, fmt.Errorf("failed to read registry %s: %w", r.path, err)
		}
		headers, rows = table.Headers, table.Rows
	}

	journalIdx := headerIndex(headers, types.ColumnJournal)
	issnIdx := headerIndex(headers, types.ColumnISSN)
	if journalIdx < 0 || issnIdx < 0 {
		return nil, fmt.Errorf("registry %s must have %q and %q columns, found %v",
			r.path, types.ColumnJournal, types.ColumnISSN, headers)
	}

	registry := &types.CanonicalRegistry{}
	for _, row := range rows {
		entry := types.RegistryEntry{
			Journal: cell(row, journalIdx),
			ISSN:    cell(row, issnIdx),
		}
		if strings.TrimSpace(entry.Journal) == "" && strings.TrimSpace(entry.ISSN) == "" {
			continue
		}
		registry.Entries = append(registry.Entries, entry)
	}

	return registry, nil
}

// headerIndex finds a header case-insensitively, ignoring surrounding
// whitespace.
func headerIndex(headers []string, name string) int {
	for i, h := range headers {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
