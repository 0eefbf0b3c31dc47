// =============================================================================
// Journal Access Sync - Shared Types
// =============================================================================
//
// This package contains the data model shared by the parsers, validators,
// stores and the reconciliation engine. Keeping it separate avoids import
// cycles between those packages.
//
// =============================================================================

package types

import "time"

// =============================================================================
// COLUMNS
// =============================================================================

// Column names of a source sheet, in canonical order.
const (
	ColumnJournal = "journal"
	ColumnISSN    = "issn"
	ColumnAccess  = "access"
	ColumnNotes   = "notes"
)

// ColumnUniversity is the institution tag added to merged rows.
const ColumnUniversity = "university"

// SheetColumns is the exact header every source sheet must carry.
var SheetColumns = []string{ColumnJournal, ColumnISSN, ColumnAccess, ColumnNotes}

// DatasetColumns is the header of the consolidated dataset file.
var DatasetColumns = []string{ColumnUniversity, ColumnJournal, ColumnISSN, ColumnAccess, ColumnNotes}

// =============================================================================
// SOURCE SHEETS
// =============================================================================

// JournalRecord is one row of a source sheet.
type JournalRecord struct {
	Journal string
	ISSN    string

	// Access is "0" or "1".
	Access string

	// Notes is free text and may be empty.
	Notes string
}

// SheetRef identifies a source sheet before it is fetched.
type SheetRef struct {
	// ID is the opaque sheet identifier recorded in the ledger.
	ID string

	// Institution is the name the merged rows are tagged with.
	Institution string

	// Location is backend specific (a file path for folder sources).
	Location string
}

// SourceSheet is one institution's self-reported dataset.
// It is immutable once fetched.
type SourceSheet struct {
	ID          string
	Institution string

	// Columns is the header row as read from the source.
	Columns []string

	// Rows holds the data rows; each row is aligned with Columns.
	Rows [][]string
}

// ColumnIndex returns the position of a column, or -1.
func (s *SourceSheet) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell of row i in the named column, or "" when the
// column or cell is absent.
func (s *SourceSheet) Value(i int, column string) string {
	idx := s.ColumnIndex(column)
	if idx < 0 || idx >= len(s.Rows[i]) {
		return ""
	}
	return s.Rows[i][idx]
}

// Records maps each row to a JournalRecord by column name.
func (s *SourceSheet) Records() []JournalRecord {
	records := make([]JournalRecord, len(s.Rows))
	for i := range s.Rows {
		records[i] = JournalRecord{
			Journal: s.Value(i, ColumnJournal),
			ISSN:    s.Value(i, ColumnISSN),
			Access:  s.Value(i, ColumnAccess),
			Notes:   s.Value(i, ColumnNotes),
		}
	}
	return records
}

// =============================================================================
// CANONICAL REGISTRY
// =============================================================================

// RegistryEntry pairs a journal with its authoritative ISSN.
type RegistryEntry struct {
	Journal string
	ISSN    string
}

// CanonicalRegistry is the authoritative journal list every sheet must cover.
// It is loaded once per run and read-only afterwards.
type CanonicalRegistry struct {
	Entries []RegistryEntry
}

// Len returns the number of journals in the registry.
func (r *CanonicalRegistry) Len() int {
	return len(r.Entries)
}

// Journals returns the set of registry journal names.
func (r *CanonicalRegistry) Journals() map[string]struct{} {
	set := make(map[string]struct{}, len(r.Entries))
	for _, e := range r.Entries {
		set[e.Journal] = struct{}{}
	}
	return set
}

// ISSNByJournal returns the journal -> ISSN mapping.
func (r *CanonicalRegistry) ISSNByJournal() map[string]string {
	m := make(map[string]string, len(r.Entries))
	for _, e := range r.Entries {
		m[e.Journal] = e.ISSN
	}
	return m
}

// =============================================================================
// CONSOLIDATED DATASET
// =============================================================================

// DatasetRow is one institution-tagged row of the consolidated dataset.
type DatasetRow struct {
	University string
	Journal    string
	ISSN       string
	Access     string
	Notes      string
}

// Fields returns the row in DatasetColumns order.
func (r DatasetRow) Fields() []string {
	return []string{r.University, r.Journal, r.ISSN, r.Access, r.Notes}
}

// ConsolidatedDataset holds merged rows, most recent merge first.
type ConsolidatedDataset struct {
	Rows []DatasetRow
}

// Len returns the number of rows.
func (d *ConsolidatedDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Prepend returns a new dataset with rows placed ahead of the existing
// content. The receiver is left untouched.
func (d *ConsolidatedDataset) Prepend(rows []DatasetRow) *ConsolidatedDataset {
	merged := make([]DatasetRow, 0, len(rows)+d.Len())
	merged = append(merged, rows...)
	if d != nil {
		merged = append(merged, d.Rows...)
	}
	return &ConsolidatedDataset{Rows: merged}
}

// TagRecords tags every record with the institution name.
func TagRecords(institution string, records []JournalRecord) []DatasetRow {
	rows := make([]DatasetRow, len(records))
	for i, r := range records {
		rows[i] = DatasetRow{
			University: institution,
			Journal:    r.Journal,
			ISSN:       r.ISSN,
			Access:     r.Access,
			Notes:      r.Notes,
		}
	}
	return rows
}

// =============================================================================
// LEDGER
// =============================================================================

// LedgerEntry records that a sheet has been merged.
type LedgerEntry struct {
	SheetID     string
	Institution string
	MergedAt    time.Time
	RunID       string
}

// =============================================================================
// OUTCOMES
// =============================================================================

// FailureKind classifies why a sheet did not fully merge.
type FailureKind string

// Failure kinds.
const (
	KindSchema        FailureKind = "schema"
	KindDuplicates    FailureKind = "duplicates"
	KindMissingValues FailureKind = "missingValues"
	KindFormat        FailureKind = "format"
	KindCompleteness  FailureKind = "completeness"
	KindConsistency   FailureKind = "consistency"
	KindFetchIO       FailureKind = "fetchIO"
	KindMergeIO       FailureKind = "mergeIO"
	KindLedgerIO      FailureKind = "ledgerIO"
)

// IsIO reports whether the kind is an external-layer fault.
func (k FailureKind) IsIO() bool {
	return k == KindFetchIO || k == KindMergeIO || k == KindLedgerIO
}

// FailureRecord is one entry of the end-of-run report.
type FailureRecord struct {
	SheetID     string
	Institution string
	Kind        FailureKind
	Detail      string
}

// SheetState is a state of the per-sheet reconciliation machine.
type SheetState string

// Sheet states.
const (
	StateFetched              SheetState = "Fetched"
	StateSchemaChecked        SheetState = "SchemaChecked"
	StateReferentiallyChecked SheetState = "ReferentiallyChecked"
	StateMerged               SheetState = "Merged"
	StateLedgerRecorded       SheetState = "LedgerRecorded"
	StateRejected             SheetState = "Rejected"
	StatePartialSuccess       SheetState = "PartialSuccess"
)

// SheetOutcome is the terminal state reached by one sheet.
type SheetOutcome struct {
	SheetID     string
	Institution string
	State       SheetState
	RowsMerged  int
}

// Report aggregates the outcome of a run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Skipped lists sheet IDs already present in the ledger.
	Skipped []string

	Outcomes []SheetOutcome
	Failures []FailureRecord

	// Cancelled is set when the run stopped before every sheet was handled.
	Cancelled bool
}

// Merged returns the number of sheets that reached LedgerRecorded.
func (r *Report) Merged() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == StateLedgerRecorded {
			n++
		}
	}
	return n
}

// FailuresByKind counts failures per kind.
func (r *Report) FailuresByKind() map[FailureKind]int {
	counts := make(map[FailureKind]int)
	for _, f := range r.Failures {
		counts[f.Kind]++
	}
	return counts
}
