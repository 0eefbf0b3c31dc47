package csvparser_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/csvparser"
)

func utf8Settings() config.CSVSettings {
	return config.CSVSettings{Delimiter: ",", Encoding: "UTF-8"}
}

func TestParseReader(t *testing.T) {
	input := "journal,issn,access,notes\n" +
		"Nature,0028-0836,1,\n" +
		"\"Journal of Things, The\",0036-8075,0,\"line one\nline two\"\n"

	table, err := csvparser.ParseReader(strings.NewReader(input), utf8Settings())
	require.NoError(t, err)

	assert.Equal(t, []string{"journal", "issn", "access", "notes"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Nature", "0028-0836", "1", ""}, table.Rows[0])
	assert.Equal(t, "Journal of Things, The", table.Rows[1][0])
	assert.Equal(t, "line one\nline two", table.Rows[1][3])
}

func TestParseReaderKeepsValuesExact(t *testing.T) {
	input := " journal ,issn,access,notes\n Nature ,0028-0836,1,x\n"
	table, err := csvparser.ParseReader(strings.NewReader(input), utf8Settings())
	require.NoError(t, err)

	assert.Equal(t, " journal ", table.Headers[0])
	assert.Equal(t, " Nature ", table.Rows[0][0])
}

func TestParseReaderRaggedRows(t *testing.T) {
	input := "journal,issn,access,notes\nNature,0028-0836,1\n"
	table, err := csvparser.ParseReader(strings.NewReader(input), utf8Settings())
	require.NoError(t, err)
	assert.Len(t, table.Rows[0], 3)
}

func TestParseReaderDelimiters(t *testing.T) {
	for _, tc := range []struct {
		delimiter string
		input     string
	}{
		{"tab", "journal\tissn\nNature\t0028-0836\n"},
		{"|", "journal|issn\nNature|0028-0836\n"},
		{"semicolon", "journal;issn\nNature;0028-0836\n"},
	} {
		t.Run(tc.delimiter, func(t *testing.T) {
			table, err := csvparser.ParseReader(strings.NewReader(tc.input),
				config.CSVSettings{Delimiter: tc.delimiter})
			require.NoError(t, err)
			assert.Equal(t, []string{"Nature", "0028-0836"}, table.Rows[0])
		})
	}
}

func TestParseReaderEncodings(t *testing.T) {
	t.Run("utf-8 bom is stripped", func(t *testing.T) {
		input := "\xef\xbb\xbfjournal,issn\nNature,0028-0836\n"
		table, err := csvparser.ParseReader(strings.NewReader(input), utf8Settings())
		require.NoError(t, err)
		assert.Equal(t, "journal", table.Headers[0])
	})

	t.Run("windows-1252", func(t *testing.T) {
		// 0xE9 is e-acute in Windows-1252.
		input := []byte("journal,issn\nRevue G\xe9n\xe9rale,0317-8471\n")
		table, err := csvparser.ParseReader(bytes.NewReader(input),
			config.CSVSettings{Encoding: "Windows-1252"})
		require.NoError(t, err)
		assert.Equal(t, "Revue Générale", table.Rows[0][0])
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := csvparser.ParseReader(strings.NewReader("a\n"),
			config.CSVSettings{Encoding: "EBCDIC"})
		assert.ErrorContains(t, err, "unsupported encoding")
	})
}

func TestParseEmpty(t *testing.T) {
	_, err := csvparser.ParseReader(strings.NewReader(""), utf8Settings())
	assert.Error(t, err)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxford.csv")
	require.NoError(t, os.WriteFile(path, []byte("journal,issn\nNature,0028-0836\n"), 0o644))

	table, err := csvparser.Parse(path, utf8Settings())
	require.NoError(t, err)
	assert.Equal(t, path, table.SourceFile)
	assert.Equal(t, []string{"journal", "issn"}, table.Headers)
	assert.Equal(t, [][]string{{"Nature", "0028-0836"}}, table.Rows)

	_, err = csvparser.Parse(filepath.Join(t.TempDir(), "absent.csv"), utf8Settings())
	assert.Error(t, err)
}
