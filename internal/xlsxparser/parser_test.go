package xlsxparser_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/xlsxparser"
)

func TestWriteThenParse(t *testing.T) {
	headers := []string{"journal", "issn", "access", "notes"}
	rows := [][]string{
		{"Nature", "0028-0836", "1", ""},
		{"Science", "0036-8075", "0", "print only"},
	}

	var buf bytes.Buffer
	require.NoError(t, xlsxparser.Write(&buf, "Oxford", headers, rows))

	table, err := xlsxparser.ParseReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, "Oxford", table.SheetName)
	assert.Equal(t, headers, table.Headers)
	// The blank trailing notes cell is padded back.
	assert.Equal(t, rows, table.Rows)
}

func TestParseFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, xlsxparser.Write(&buf, "", []string{"journal", "issn"}, [][]string{{"Nature", "0028-0836"}}))

	path := filepath.Join(t.TempDir(), "registry.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	table, err := xlsxparser.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, path, table.SourceFile)
	assert.Equal(t, "Sheet1", table.SheetName)
	assert.Equal(t, [][]string{{"Nature", "0028-0836"}}, table.Rows)

	_, err = xlsxparser.ParseSheet(path, "Missing")
	assert.Error(t, err)
}

func TestParseNotAWorkbook(t *testing.T) {
	_, err := xlsxparser.ParseReader(bytes.NewReader([]byte("journal,issn\n")))
	assert.Error(t, err)
}
