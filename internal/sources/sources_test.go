package sources_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/sources"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/validation"
	"github.com/ginjaninja78/journal-access-sync/internal/xlsxparser"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

const sheetCSV = "journal,issn,access,notes\nNature,0028-0836,1,\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeWorkbook(t *testing.T, path string, headers []string, rows [][]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, xlsxparser.Write(f, "", headers, rows))
}

func institutions() []*config.InstitutionConfig {
	return []*config.InstitutionConfig{
		{InstitutionName: "University of Oxford", InstitutionCode: "ox", FileMatchingPatterns: []string{"oxford_*"}},
		{InstitutionName: "University of Leeds", InstitutionCode: "le", FileMatchingPatterns: []string{"leeds_*", "*_leeds.*"},
			CSVSettings: &config.CSVSettings{Delimiter: ";", Encoding: "UTF-8"}},
	}
}

func TestFolderSourceListSheets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "oxford_2026.csv"), sheetCSV)
	writeFile(t, filepath.Join(dir, "2025", "oxford_2025.csv"), sheetCSV)
	writeFile(t, filepath.Join(dir, "leeds_2026.csv"), sheetCSV)
	writeFile(t, filepath.Join(dir, "unknown.csv"), sheetCSV)
	writeFile(t, filepath.Join(dir, "oxford_notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "~$oxford_2026.xlsx"), "lock")
	writeFile(t, filepath.Join(dir, ".hidden", "oxford_x.csv"), sheetCSV)

	src := sources.NewFolderSource(dir, institutions(), config.CSVSettings{Delimiter: ","})
	refs, err := src.ListSheets(context.Background())
	require.NoError(t, err)

	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"2025/oxford_2025", "leeds_2026", "oxford_2026"}, ids)
	assert.Equal(t, "University of Leeds", refs[1].Institution)
	assert.Equal(t, filepath.Join(dir, "oxford_2026.csv"), refs[2].Location)
}

func TestFolderSourceDuplicateSheetID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "oxford_2026.csv"), sheetCSV)
	writeWorkbook(t, filepath.Join(dir, "oxford_2026.xlsx"), types.SheetColumns, nil)

	_, err := sources.NewFolderSource(dir, institutions(), config.CSVSettings{}).ListSheets(context.Background())
	assert.ErrorContains(t, err, `sheet ID "oxford_2026"`)
}

func TestFolderSourceMissingDir(t *testing.T) {
	_, err := sources.NewFolderSource(filepath.Join(t.TempDir(), "nope"), institutions(), config.CSVSettings{}).
		ListSheets(context.Background())
	assert.Error(t, err)
}

func TestFolderSourceFetchSheet(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "leeds_2026.csv"), "journal;issn;access;notes\nNature;0028-0836;1;a, b\n")
	writeWorkbook(t, filepath.Join(dir, "oxford_2026.xlsx"), types.SheetColumns, [][]string{
		{"Nature", "0028-0836", "0", ""},
	})

	src := sources.NewFolderSource(dir, institutions(), config.CSVSettings{Delimiter: ","})
	refs, err := src.ListSheets(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)

	leeds, err := src.FetchSheet(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, "leeds_2026", leeds.ID)
	assert.Equal(t, "University of Leeds", leeds.Institution)
	assert.Equal(t, types.SheetColumns, leeds.Columns)
	assert.Equal(t, [][]string{{"Nature", "0028-0836", "1", "a, b"}}, leeds.Rows)

	oxford, err := src.FetchSheet(context.Background(), refs[1])
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Nature", "0028-0836", "0", ""}}, oxford.Rows)
}

func TestFolderSourceFetchSheetKeepsHeaders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "oxford_2026.csv"), " journal , issn,access,notes \nNature,0028-0836,1,\n")

	src := sources.NewFolderSource(dir, institutions(), config.CSVSettings{Delimiter: ","})
	refs, err := src.ListSheets(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 1)

	sheet, err := src.FetchSheet(context.Background(), refs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{" journal ", " issn", "access", "notes "}, sheet.Columns)
	assert.False(t, validation.CheckSchema(sheet, 1).ColumnsOK)
}

func TestFolderSourceFetchFailure(t *testing.T) {
	src := sources.NewFolderSource(t.TempDir(), institutions(), config.CSVSettings{})
	_, err := src.FetchSheet(context.Background(), types.SheetRef{
		ID:          "gone",
		Institution: "University of Oxford",
		Location:    filepath.Join(t.TempDir(), "gone.csv"),
	})

	require.Error(t, err)
	var fetchErr *pkgerrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "gone", fetchErr.SheetID)
}

func TestFileRegistryCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journals.csv")
	writeFile(t, path, "Publisher,Journal,ISSN\nSpringer,Nature,0028-0836\n,,\nAAAS,Science,0036-8075\n")

	registry, err := sources.NewFileRegistry(path, config.CSVSettings{Delimiter: ","}).
		FetchRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.RegistryEntry{
		{Journal: "Nature", ISSN: "0028-0836"},
		{Journal: "Science", ISSN: "0036-8075"},
	}, registry.Entries)
}

func TestFileRegistryXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journals.xlsx")
	writeWorkbook(t, path, []string{"journal", "issn"}, [][]string{{"Nature", "0028-0836"}})

	registry, err := sources.NewFileRegistry(path, config.CSVSettings{}).FetchRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, registry.Len())
}

func TestFileRegistryPaddedHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journals.csv")
	writeFile(t, path, " Journal , ISSN \nNature,0028-0836\n")

	registry, err := sources.NewFileRegistry(path, config.CSVSettings{Delimiter: ","}).
		FetchRegistry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.RegistryEntry{{Journal: "Nature", ISSN: "0028-0836"}}, registry.Entries)
}

func TestFileRegistryMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journals.csv")
	writeFile(t, path, "title,issn\nNature,0028-0836\n")

	_, err := sources.NewFileRegistry(path, config.CSVSettings{}).FetchRegistry(context.Background())
	assert.ErrorContains(t, err, "must have")
}
