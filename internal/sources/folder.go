// =============================================================================
// Journal Access Sync - Folder Sheet Source
// =============================================================================
//
// FolderSource finds institution sheets in an input directory. Each file is
// assigned to the first institution config whose file matching patterns
// match the file's base name.
//
// DISCOVERY:
//   1. Walk the input directory recursively
//   2. Keep .csv and .xlsx files, skipping hidden files and Excel lock files
//   3. Match each file against the institution configs in order
//   4. Skip (with a warning) files no institution claims
//
// SHEET IDENTIFIERS:
//   A sheet's ID is its path relative to the input directory, without the
//   extension and with forward slashes ("oxford_2026" or "2026/oxford").
//   The ID is what the merge ledger records, so renaming a file makes it a
//   new sheet.
//
// =============================================================================

package sources

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/csvparser"
	"github.com/ginjaninja78/journal-access-sync/internal/logging"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/xlsxparser"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// FolderSource implements the engine's sheet source on a local directory.
type FolderSource struct {
	inputDir     string
	institutions []*config.InstitutionConfig
	csvSettings  config.CSVSettings
}

// NewFolderSource creates a folder source.
//
// PARAMETERS:
//   - inputDir: The directory holding institution sheets.
//   - institutions: The institution configs, in matching priority order.
//   - csvSettings: The CSV settings for institutions without overrides.
func NewFolderSource(inputDir string, institutions []*config.InstitutionConfig, csvSettings config.CSVSettings) *FolderSource {
	return &FolderSource{
		inputDir:     inputDir,
		institutions: institutions,
		csvSettings:  csvSettings,
	}
}

// ListSheets returns every matched sheet in the input directory, ordered by
// sheet ID.
func (s *FolderSource) ListSheets(ctx context.Context) ([]types.SheetRef, error) {
	logger := logging.FromContext(ctx)

	files, err := discoverSheetFiles(s.inputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory %s: %w", s.inputDir, err)
	}

	seen := make(map[string]string, len(files))
	refs := make([]types.SheetRef, 0, len(files))
	for _, path := range files {
		inst := findMatchingInstitution(path, s.institutions)
		if inst == nil {
			logger.Warn().Str("file", path).Msg("no institution config matches file, skipping")
			continue
		}

		id, err := sheetID(s.inputDir, path)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[id]; dup {
			return nil, fmt.Errorf("sheet ID %q is shared by %s and %s", id, other, path)
		}
		seen[id] = path

		refs = append(refs, types.SheetRef{
			ID:          id,
			Institution: inst.InstitutionName,
			Location:    path,
		})
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

// FetchSheet reads the sheet file. Any read or parse failure is returned as
// a FetchError.
func (s *FolderSource) FetchSheet(_ context.Context, ref types.SheetRef) (*types.SourceSheet, error) {
	var (
		headers []string
		rows    [][]string
	)

	switch strings.ToLower(filepath.Ext(ref.Location)) {
	case ".csv":
		settings := s.institution(ref.Institution).EffectiveCSVSettings(s.csvSettings)
		table, err := csvparser.Parse(ref.Location, settings)
		if err != nil {
			return nil, pkgerrors.NewFetchError(ref.ID, err)
		}
		headers, rows = table.Headers, table.Rows
	case ".xlsx":
		table, err := xlsxparser.Parse(ref.Location)
		if err != nil {
			return nil, pkgerrors.NewFetchError(ref.ID, err)
		}
		headers, rows = table.Headers, table.Rows
	default:
		return nil, pkgerrors.NewFetchError(ref.ID, fmt.Errorf("unsupported file type %s", ref.Location))
	}

	return &types.SourceSheet{
		ID:          ref.ID,
		Institution: ref.Institution,
		Columns:     headers,
		Rows:        rows,
	}, nil
}

// institution returns the config named name, or nil.
func (s *FolderSource) institution(name string) *config.InstitutionConfig {
	for _, inst := range s.institutions {
		if inst.InstitutionName == name {
			return inst
		}
	}
	return nil
}

// =============================================================================
// DISCOVERY HELPERS
// =============================================================================

// discoverSheetFiles finds all sheet files in the input directory.
func discoverSheetFiles(inputDir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		name := d.Name()
		if d.IsDir() {
			if path != inputDir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		// Hidden files and "~$book.xlsx" lock files left by Excel.
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			return nil
		}

		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv", ".xlsx":
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// findMatchingInstitution returns the first institution config with a
// pattern matching the file's base name, or nil.
func findMatchingInstitution(filePath string, institutions []*config.InstitutionConfig) *config.InstitutionConfig {
	fileName := filepath.Base(filePath)

	for _, inst := range institutions {
		for _, pattern := range inst.FileMatchingPatterns {
			// Patterns are validated when configs load.
			if matched, _ := filepath.Match(pattern, fileName); matched {
				return inst
			}
		}
	}

	return nil
}

// sheetID derives the ledger identifier of a sheet file.
func sheetID(inputDir, path string) (string, error) {
	rel, err := filepath.Rel(inputDir, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sheet ID for %s: %w", path, err)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return filepath.ToSlash(rel), nil
}
