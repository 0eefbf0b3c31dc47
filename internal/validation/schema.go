// =============================================================================
// Journal Access Sync - Schema Validation
// =============================================================================
//
// This module checks the structure of a source sheet before any of its
// content is trusted:
//   - Shape: the row count matches the canonical registry and every row has
//     exactly four fields
//   - Columns: the header is exactly journal, issn, access, notes in order
//   - Duplicates: no two rows are identical across all fields
//   - Missing values: no blank or sentinel cells in the checked columns
//
// VALIDATION STRATEGY:
//   Every predicate is evaluated and reported independently, so a single
//   failure report can name all violated predicates at once. Gating (which
//   predicate rejects a sheet) is the engine's decision, not this module's.
//
// =============================================================================

package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
)

// =============================================================================
// SCHEMA CHECK
// =============================================================================

// SchemaResult holds the independent structural predicates of a sheet.
type SchemaResult struct {
	// ShapeOK is true when the sheet has the expected number of rows and
	// every row has one field per canonical column.
	ShapeOK bool

	// ColumnsOK is true when the header equals SheetColumns exactly.
	ColumnsOK bool

	// NoDuplicateRows is true when no two rows are fully identical.
	NoDuplicateRows bool

	// Rows and Fields describe the observed shape, for failure details.
	Rows   int
	Fields int

	// DuplicateRows lists 1-based data row numbers that repeat an earlier row.
	DuplicateRows []int
}

// OK reports whether every predicate holds.
func (r SchemaResult) OK() bool {
	return r.ShapeOK && r.ColumnsOK && r.NoDuplicateRows
}

// Violations lists the violated predicates by name.
func (r SchemaResult) Violations() []string {
	var v []string
	if !r.ShapeOK {
		v = append(v, "shape")
	}
	if !r.ColumnsOK {
		v = append(v, "columns")
	}
	if !r.NoDuplicateRows {
		v = append(v, "duplicates")
	}
	return v
}

// CheckSchema evaluates the structural predicates of a sheet.
//
// PARAMETERS:
//   - sheet: The fetched source sheet.
//   - expectedRows: The canonical row count (the registry size).
//
// RETURNS:
//   - A SchemaResult with every predicate evaluated.
func CheckSchema(sheet *types.SourceSheet, expectedRows int) SchemaResult {
	result := SchemaResult{
		Rows:   len(sheet.Rows),
		Fields: len(sheet.Columns),
	}

	// Shape: row count plus field count on the header and on every row.
	result.ShapeOK = len(sheet.Rows) == expectedRows && len(sheet.Columns) == len(types.SheetColumns)
	for _, row := range sheet.Rows {
		if len(row) != len(types.SheetColumns) {
			result.ShapeOK = false
			break
		}
	}

	result.ColumnsOK = equalColumns(sheet.Columns, types.SheetColumns)

	result.DuplicateRows = duplicateRows(sheet.Rows)
	result.NoDuplicateRows = len(result.DuplicateRows) == 0

	return result
}

// Detail renders a human-readable description of the violated predicates.
func (r SchemaResult) Detail(columns []string, expectedRows int) string {
	var parts []string
	if !r.ShapeOK {
		parts = append(parts, fmt.Sprintf("shape is (%d, %d), expected (%d, %d)",
			r.Rows, r.Fields, expectedRows, len(types.SheetColumns)))
	}
	if !r.ColumnsOK {
		parts = append(parts, fmt.Sprintf("columns are [%s], expected [%s]",
			strings.Join(columns, " "), strings.Join(types.SheetColumns, " ")))
	}
	if !r.NoDuplicateRows {
		parts = append(parts, fmt.Sprintf("duplicate rows at %s", joinInts(r.DuplicateRows)))
	}
	return strings.Join(parts, "; ")
}

// equalColumns compares two headers position by position.
func equalColumns(got, want []string) bool {
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

// duplicateRows returns the 1-based positions of rows equal to an earlier row.
func duplicateRows(rows [][]string) []int {
	seen := make(map[string]struct{}, len(rows))
	var dups []int
	for i, row := range rows {
		key := rowKey(row)
		if _, ok := seen[key]; ok {
			dups = append(dups, i+1)
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// rowKey builds an unambiguous key for a row.
// Each field is length-prefixed so ["a,b", "c"] and ["a", "b,c"] differ.
func rowKey(row []string) string {
	var b strings.Builder
	for _, field := range row {
		b.WriteString(strconv.Itoa(len(field)))
		b.WriteByte(':')
		b.WriteString(field)
	}
	return b.String()
}

func joinInts(values []int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}
	return strings.Join(s, ", ")
}

// =============================================================================
// MISSING VALUES
// =============================================================================

// MissingTokens is the set of sentinel strings treated as missing values.
// Matching is case-insensitive; keys are stored lowercased.
type MissingTokens map[string]struct{}

// DefaultMissingTokens returns the sentinel tokens seen in institution sheets.
func DefaultMissingTokens() MissingTokens {
	return NewMissingTokens([]string{"missing", "null", "none", "n/a", "-", "x"})
}

// NewMissingTokens builds a token set from a list, e.g. from configuration.
func NewMissingTokens(tokens []string) MissingTokens {
	set := make(MissingTokens, len(tokens))
	for _, t := range tokens {
		set[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	return set
}

// IsMissing reports whether a cell counts as a missing value: blank or
// whitespace-only, a sentinel token, or a float infinity/NaN spelling.
func (t MissingTokens) IsMissing(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return true
	}
	if _, ok := t[strings.ToLower(trimmed)]; ok {
		return true
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil || isRangeErr(err) {
		return math.IsInf(f, 0) || math.IsNaN(f)
	}
	return false
}

// isRangeErr reports overflow from ParseFloat, which returns ±Inf.
func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

// HasMissingValues reports whether any checked column contains a missing
// value, and which columns do.
//
// PARAMETERS:
//   - sheet: The source sheet.
//   - includeNotes: Also check the notes column. Notes are free text and an
//     empty note is valid, so they are skipped by default.
//   - tokens: The sentinel token set (see DefaultMissingTokens).
//
// RETURNS:
//   - true if any missing value was found.
//   - The offending column names, in header order.
func HasMissingValues(sheet *types.SourceSheet, includeNotes bool, tokens MissingTokens) (bool, []string) {
	var columns []string

	for col, name := range sheet.Columns {
		if name == types.ColumnNotes && !includeNotes {
			continue
		}
		for _, row := range sheet.Rows {
			value := ""
			if col < len(row) {
				value = row[col]
			}
			if tokens.IsMissing(value) {
				columns = append(columns, name)
				break
			}
		}
	}

	return len(columns) > 0, columns
}
