// =============================================================================
// Journal Access Sync - CSV Parser Module
// =============================================================================
//
// This module reads institution sheets and registry files stored as CSV.
// It handles:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Different encodings (UTF-8 with or without BOM, ISO-8859-1,
//     Windows-1252)
//   - Quoted fields containing delimiters or line breaks
//
// Header names and cell values are returned exactly as written; validation
// decides what a stray space means.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
)

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table represents a parsed CSV file.
type Table struct {
	// Headers contains the column headers from the first row.
	Headers []string

	// Rows contains the data rows. Rows may be shorter or longer than
	// Headers; shape checks happen downstream.
	Rows [][]string

	// SourceFile is the path to the source file, empty for readers.
	SourceFile string
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the parsed table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - A pointer to the Table.
//   - An error if the file cannot be read or parsed.
func Parse(filePath string, settings config.CSVSettings) (*Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath

	return table, nil
}

// ParseReader reads CSV content from r.
//
// PARSING PROCESS:
//   1. Wrap the reader in a decoder for the configured encoding
//   2. Configure the CSV reader with the configured delimiter
//   3. Take the first record as the header row
//   4. Keep every following record as a data row
func ParseReader(r io.Reader, settings config.CSVSettings) (*Table, error) {
	decoder, err := Decoder(settings.Encoding)
	if err != nil {
		return nil, err
	}

	csvReader := csv.NewReader(transform.NewReader(bufio.NewReader(r), decoder))
	if err := configureReader(csvReader, settings); err != nil {
		return nil, err
	}

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	return &Table{
		Headers: allRows[0],
		Rows:    allRows[1:],
	}, nil
}

// Decoder returns the text decoder for an encoding name. UTF-8 input has
// any leading byte order mark removed.
//
// Supported names (case-insensitive): UTF-8, UTF8, ISO-8859-1, LATIN1,
// WINDOWS-1252, CP1252.
func Decoder(name string) (*encoding.Decoder, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "_", "-")) {
	case "", "UTF-8", "UTF8":
		return unicode.UTF8BOM.NewDecoder(), nil
	case "ISO-8859-1", "LATIN1", "LATIN-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "WINDOWS-1252", "CP1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) error {
	comma, err := settings.DelimiterRune()
	if err != nil {
		return err
	}
	reader.Comma = comma

	// Row length is a schema concern, not a parse error.
	reader.FieldsPerRecord = -1

	reader.LazyQuotes = true
	reader.ReuseRecord = false

	return nil
}
