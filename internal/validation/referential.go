// =============================================================================
// Journal Access Sync - Referential Validation
// =============================================================================
//
// This module checks a sheet against the canonical registry:
//   - Completeness: every registry journal appears in the sheet
//   - Consistency: each journal's ISSN matches the registry exactly
//
// It also rejects a registry that cannot serve as a reference (blank or
// repeated journal names, ISSNs that fail the check digit).
//
// =============================================================================

package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
)

// CheckCompleteness verifies that every registry journal appears at least
// once in the sheet's journal column. Comparison is exact; callers that want
// case or whitespace folding must normalize both sides first.
//
// It returns whether the sheet is complete and the sorted registry journals
// absent from it.
func CheckCompleteness(sheet *types.SourceSheet, registryJournals map[string]struct{}) (bool, []string) {
	present := make(map[string]struct{}, len(sheet.Rows))
	for i := range sheet.Rows {
		present[sheet.Value(i, types.ColumnJournal)] = struct{}{}
	}

	var missing []string
	for journal := range registryJournals {
		if _, ok := present[journal]; !ok {
			missing = append(missing, journal)
		}
	}
	sort.Strings(missing)

	return len(missing) == 0, missing
}

// SheetISSNs collects every ISSN reported for each journal of a sheet.
// A journal listed twice with different ISSNs keeps both values.
func SheetISSNs(sheet *types.SourceSheet) map[string][]string {
	m := make(map[string][]string)
	for i := range sheet.Rows {
		journal := sheet.Value(i, types.ColumnJournal)
		m[journal] = append(m[journal], sheet.Value(i, types.ColumnISSN))
	}
	return m
}

// CheckConsistency verifies that, for every journal known to both the
// registry and the sheet, the sheet's ISSNs equal the registry ISSN exactly.
// Journals present only in the sheet are not a consistency failure.
//
// It returns whether the sheet is consistent and the sorted mismatched
// journal names.
func CheckConsistency(registry map[string]string, sheet map[string][]string) (bool, []string) {
	var mismatched []string

	for journal, want := range registry {
		got, ok := sheet[journal]
		if !ok {
			continue
		}
		for _, issn := range got {
			if issn != want {
				mismatched = append(mismatched, journal)
				break
			}
		}
	}
	sort.Strings(mismatched)

	return len(mismatched) == 0, mismatched
}

// ValidateRegistry checks that the canonical registry is usable as the
// reference for a run: it is non-empty, journal names are unique and
// non-blank, and every ISSN passes CheckISSN.
//
// It returns nil or an error listing every problem found.
func ValidateRegistry(registry *types.CanonicalRegistry) error {
	if registry == nil || registry.Len() == 0 {
		return fmt.Errorf("registry is empty")
	}

	var problems []string
	seen := make(map[string]int, registry.Len())

	for i, e := range registry.Entries {
		line := i + 1
		if strings.TrimSpace(e.Journal) == "" {
			problems = append(problems, fmt.Sprintf("entry %d: blank journal name", line))
			continue
		}
		if first, ok := seen[e.Journal]; ok {
			problems = append(problems, fmt.Sprintf("entry %d: journal %q already listed at entry %d", line, e.Journal, first))
			continue
		}
		seen[e.Journal] = line

		if msg := CheckISSN(e.ISSN); msg != "" {
			problems = append(problems, fmt.Sprintf("entry %d: journal %q issn %q: %s", line, e.Journal, e.ISSN, msg))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d invalid registry entr%s: %s", len(problems), plural(len(problems), "y", "ies"), strings.Join(problems, "; "))
	}
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
