// =============================================================================
// Journal Access Sync - XLSX Workbook Module
// =============================================================================
//
// This module reads institution sheets and registry files stored as Excel
// workbooks, and writes standalone institution workbooks.
//
// SHEET SELECTION:
//   The first worksheet is read unless a sheet name is given. Sheets whose
//   name starts with "_" are treated as scratch sheets and skipped when
//   choosing the first one.
//
// ROW SHAPE:
//   Excel does not store trailing empty cells, so a row whose last cells are
//   blank comes back short. Rows are padded with "" to the header width so
//   a blank notes cell reads the same as it would from CSV.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// =============================================================================
// TABLE STRUCTURE
// =============================================================================

// Table represents one parsed worksheet.
type Table struct {
	// Headers contains the values of the first row.
	Headers []string

	// Rows contains the remaining rows, padded to the header width.
	Rows [][]string

	// SourceFile is the path to the workbook, empty for readers.
	SourceFile string

	// SheetName is the worksheet that was read.
	SheetName string
}

// =============================================================================
// READING
// =============================================================================

// Parse reads the first worksheet of an XLSX file.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//
// RETURNS:
//   - A pointer to the Table.
//   - An error if the file cannot be opened or has no usable sheet.
func Parse(filePath string) (*Table, error) {
	return ParseSheet(filePath, "")
}

// ParseSheet reads the named worksheet, or the first one when sheetName
// is empty.
func ParseSheet(filePath, sheetName string) (*Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	table, err := readSheet(f, sheetName)
	if err != nil {
		return nil, err
	}
	table.SourceFile = filePath

	return table, nil
}

// ParseReader reads the first worksheet of a workbook from r.
func ParseReader(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readSheet(f, "")
}

func readSheet(f *excelize.File, sheetName string) (*Table, error) {
	if sheetName == "" {
		sheetName = firstSheet(f)
		if sheetName == "" {
			return nil, fmt.Errorf("workbook has no sheets")
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows of sheet '%s': %w", sheetName, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet '%s' is empty", sheetName)
	}

	headers := append([]string(nil), rows[0]...)

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		data = append(data, padRow(row, len(headers)))
	}

	return &Table{
		Headers:   headers,
		Rows:      data,
		SheetName: sheetName,
	}, nil
}

// firstSheet returns the first worksheet not prefixed with "_".
func firstSheet(f *excelize.File) string {
	for _, name := range f.GetSheetList() {
		if !strings.HasPrefix(name, "_") {
			return name
		}
	}
	return ""
}

// padRow extends a row with empty cells up to width.
func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// =============================================================================
// WRITING
// =============================================================================

// Write renders a single-sheet workbook with a header row followed by rows.
// Every cell is written as text so values such as "0028-0836" or "0" keep
// their exact spelling.
//
// PARAMETERS:
//   - w: The destination.
//   - sheetName: The worksheet name; "Sheet1" when empty.
//   - headers: The header row.
//   - rows: The data rows.
func Write(w io.Writer, sheetName string, headers []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheetName == "" {
		sheetName = "Sheet1"
	}
	if sheetName != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheetName); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	if err := writeRow(f, sheetName, 1, headers); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, sheetName, i+2, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheetName string, rowNum int, values []string) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetCellStr(sheetName, cell, value); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
	}
	return nil
}
