// =============================================================================
// Journal Access Sync - Field Format Validation
// =============================================================================
//
// This module checks individual cell values and reports every offending
// row, not just the first:
//   - access must be 0 or 1
//   - issn must be NNNN-NNNC with a correct check character
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/issn"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// AccessValues are the accepted values of the access column.
var AccessValues = []string{"0", "1"}

// FieldIssue describes one cell that failed a format check.
type FieldIssue struct {
	// Row is the 1-based data row number.
	Row int

	Field   string
	Value   string
	Message string
}

// String renders the issue for failure reports.
func (i FieldIssue) String() string {
	return fmt.Sprintf("row %d %s %q: %s", i.Row, i.Field, i.Value, i.Message)
}

// CheckFields validates the content of every row:
//   - access must be one of AccessValues
//   - issn must be in NNNN-NNNC form with a valid check character
//
// It returns whether every row passed and the issues found.
func CheckFields(sheet *types.SourceSheet) (bool, []FieldIssue) {
	var issues []FieldIssue

	for i := range sheet.Rows {
		access := sheet.Value(i, types.ColumnAccess)
		if !isAccessValue(access) {
			issues = append(issues, FieldIssue{
				Row:     i + 1,
				Field:   types.ColumnAccess,
				Value:   access,
				Message: fmt.Sprintf("must be one of %s", strings.Join(AccessValues, ", ")),
			})
		}

		value := sheet.Value(i, types.ColumnISSN)
		if msg := CheckISSN(value); msg != "" {
			issues = append(issues, FieldIssue{
				Row:     i + 1,
				Field:   types.ColumnISSN,
				Value:   value,
				Message: msg,
			})
		}
	}

	return len(issues) == 0, issues
}

// CheckISSN returns an error message for an invalid ISSN, or "".
func CheckISSN(value string) string {
	ok, err := issn.IsValidCheckDigit(value)
	if err != nil {
		var malformed *pkgerrors.MalformedInputError
		if pkgerrors.As(err, &malformed) {
			return malformed.Reason
		}
		return err.Error()
	}
	if !ok {
		want, _ := issn.CheckDigit(value)
		return fmt.Sprintf("check character should be %c", want)
	}
	return ""
}

// FormatIssues renders at most limit issues followed by a count of the rest.
func FormatIssues(issues []FieldIssue, limit int) string {
	var parts []string
	for i, issue := range issues {
		if limit > 0 && i == limit {
			parts = append(parts, fmt.Sprintf("and %d more", len(issues)-limit))
			break
		}
		parts = append(parts, issue.String())
	}
	return strings.Join(parts, "; ")
}

func isAccessValue(v string) bool {
	for _, a := range AccessValues {
		if v == a {
			return true
		}
	}
	return false
}
