// =============================================================================
// Journal Access Sync - Reconciliation Engine
// =============================================================================
//
// The engine takes each institution sheet through validation and, when every
// check passes, merges it into the consolidated dataset and records it in the
// merge ledger.
//
// PER-SHEET STATE MACHINE:
//   Fetched -> SchemaChecked -> ReferentiallyChecked -> Merged -> LedgerRecorded
//   Any check failure ends in Rejected. A failure to persist the dataset or
//   the ledger entry ends in PartialSuccess.
//
// PIPELINE:
//   1. Load the registry, the ledger snapshot and the dataset (fatal on error)
//   2. List sheets and skip the ones already in the ledger
//   3. Fetch and validate sheets, up to MaxConcurrency at a time
//   4. Commit validated sheets one at a time, in list order
//   5. Return one aggregated report
//
// Per-sheet problems never abort the run. They are collected as failure
// records and processing moves on to the next sheet.
//
// =============================================================================

package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/journal-access-sync/internal/ledger"
	"github.com/ginjaninja78/journal-access-sync/internal/logging"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/validation"
	pkgerrors "github.com/ginjaninja78/journal-access-sync/pkg/errors"
)

// detailListLimit caps how many journals or issues a failure detail names.
const detailListLimit = 20

// =============================================================================
// ENGINE STRUCTURE
// =============================================================================

// Dependencies are the external adapters the engine works against.
type Dependencies struct {
	Sheets   SheetSource
	Registry RegistrySource
	Ledger   LedgerStore
	Dataset  DatasetStore

	// Artifacts is optional.
	Artifacts ArtifactStore
}

// Options tune validation and scheduling.
type Options struct {
	// ExpectedRows is the required row count; 0 means the registry size.
	ExpectedRows int

	// IncludeNotes runs the missing-value check on the notes column too.
	IncludeNotes bool

	// MissingTokens overrides the default sentinel set when non-nil.
	MissingTokens validation.MissingTokens

	// MaxConcurrency bounds concurrent fetch and validation. Values below 1
	// mean 1.
	MaxConcurrency int

	// DryRun validates every sheet but merges nothing.
	DryRun bool

	// Now is the clock; time.Now when nil.
	Now func() time.Time
}

// Engine runs reconciliation batches.
type Engine struct {
	deps Dependencies
	opts Options
}

// New creates an engine.
func New(deps Dependencies, opts Options) *Engine {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	if opts.MissingTokens == nil {
		opts.MissingTokens = validation.DefaultMissingTokens()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{deps: deps, opts: opts}
}

// run holds the state of one batch.
type run struct {
	*Engine

	id       string
	registry *types.CanonicalRegistry
	journals map[string]struct{}
	issns    map[string]string
	expected int
	ledger   *ledger.Ledger
	dataset  *types.ConsolidatedDataset
	report   *types.Report
}

// evaluation is the result of fetching and validating one sheet.
type evaluation struct {
	ref     types.SheetRef
	sheet   *types.SourceSheet
	failure *types.FailureRecord

	// cancelled marks a sheet that was never fetched.
	cancelled bool
}

// =============================================================================
// RUN
// =============================================================================

// Run processes every listed sheet once and returns the batch report.
//
// RETURNS:
//   - The report, also when the context was cancelled part way through.
//   - A ConfigError when the registry, ledger snapshot or dataset cannot be
//     loaded or the registry is invalid, or an error when the sheet list
//     cannot be read. No sheet is processed in those cases.
func (e *Engine) Run(ctx context.Context) (*types.Report, error) {
	r := &run{
		Engine: e,
		id:     uuid.NewString(),
	}
	r.report = &types.Report{RunID: r.id, StartedAt: e.opts.Now()}

	ctx = logging.WithRunID(ctx, r.id)
	log := logging.FromContext(ctx)

	// =========================================================================
	// STEP 1: LOAD RUN STATE
	// =========================================================================

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	log.Info().
		Int("registry_journals", r.registry.Len()).
		Int("ledger_entries", r.ledger.Len()).
		Int("dataset_rows", r.dataset.Len()).
		Int("expected_rows", r.expected).
		Bool("dry_run", e.opts.DryRun).
		Msg("run state loaded")

	// =========================================================================
	// STEP 2: LIST SHEETS
	// =========================================================================

	refs, err := e.deps.Sheets.ListSheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	var pending []types.SheetRef
	for _, ref := range refs {
		if r.ledger.IsAlreadyMerged(ref.ID) {
			r.skip(ctx, ref)
			continue
		}
		pending = append(pending, ref)
	}

	log.Info().Int("listed", len(refs)).Int("pending", len(pending)).Msg("sheets listed")

	// =========================================================================
	// STEP 3 + 4: VALIDATE CONCURRENTLY, COMMIT IN ORDER
	// =========================================================================

	r.process(ctx, pending)

	r.report.FinishedAt = e.opts.Now()

	log.Info().
		Int("merged", r.report.Merged()).
		Int("skipped", len(r.report.Skipped)).
		Int("failures", len(r.report.Failures)).
		Bool("cancelled", r.report.Cancelled).
		Msg("run finished")

	return r.report, nil
}

// load reads the registry, ledger snapshot and dataset. Every failure here
// is fatal to the run.
func (r *run) load(ctx context.Context) error {
	registry, err := r.deps.Registry.FetchRegistry(ctx)
	if err != nil {
		return asConfigError("registry", "cannot load canonical registry", err)
	}
	if err := validation.ValidateRegistry(registry); err != nil {
		return pkgerrors.NewConfigError("registry", "invalid canonical registry", err)
	}
	r.registry = registry
	r.journals = registry.Journals()
	r.issns = registry.ISSNByJournal()

	r.expected = r.opts.ExpectedRows
	if r.expected == 0 {
		r.expected = registry.Len()
	}

	snapshot, err := r.deps.Ledger.LoadLedgerSnapshot(ctx)
	if err != nil {
		return asConfigError("ledger", "cannot read ledger snapshot", err)
	}
	r.ledger = ledger.New(snapshot, r.deps.Ledger, ledger.WithRunID(r.id), ledger.WithClock(r.opts.Now))

	dataset, err := r.deps.Dataset.LoadDataset(ctx)
	if err != nil {
		return asConfigError("dataset", "cannot read consolidated dataset", err)
	}
	if dataset == nil {
		dataset = &types.ConsolidatedDataset{}
	}
	r.dataset = dataset

	return nil
}

func asConfigError(component, message string, err error) error {
	if pkgerrors.IsFatalConfig(err) {
		return err
	}
	return pkgerrors.NewConfigError(component, message, err)
}

// process validates pending sheets with bounded concurrency and commits the
// results sequentially in list order. Cancellation is observed between
// sheets only.
func (r *run) process(ctx context.Context, pending []types.SheetRef) {
	results := make([]chan evaluation, len(pending))
	for i := range results {
		results[i] = make(chan evaluation, 1)
	}

	// Sheet I/O is never interrupted half way.
	workCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrency)

	launched := make(chan struct{})
	go func() {
		defer close(launched)
		for i, ref := range pending {
			if ctx.Err() != nil {
				results[i] <- evaluation{ref: ref, cancelled: true}
				continue
			}
			g.Go(func() error {
				results[i] <- r.evaluate(workCtx, ref)
				return nil
			})
		}
	}()

	for i := range pending {
		if ctx.Err() != nil {
			r.report.Cancelled = true
			break
		}
		ev := <-results[i]
		if ev.cancelled {
			r.report.Cancelled = true
			break
		}
		r.commit(workCtx, ev)
	}

	<-launched
	_ = g.Wait()

	if r.report.Cancelled {
		logging.FromContext(ctx).Warn().
			Int("handled", len(r.report.Outcomes)).
			Int("pending", len(pending)).
			Msg("run cancelled before every sheet was handled")
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// evaluate fetches a sheet and runs every gate in order, stopping at the
// first failed gate.
func (r *run) evaluate(ctx context.Context, ref types.SheetRef) evaluation {
	ev := evaluation{ref: ref}
	ctx = logging.WithSheet(ctx, ref.ID, ref.Institution)

	sheet, err := r.deps.Sheets.FetchSheet(ctx, ref)
	if err != nil {
		ev.failure = r.failure(ref, types.KindFetchIO, err.Error())
		return ev
	}
	if sheet.ID == "" {
		sheet.ID = ref.ID
	}
	if sheet.Institution == "" {
		sheet.Institution = ref.Institution
	}
	ev.sheet = sheet
	logTransition(ctx, types.StateFetched).Int("rows", len(sheet.Rows)).Msg("sheet fetched")

	// Gate 1: shape, columns and duplicate rows.
	schema := validation.CheckSchema(sheet, r.expected)
	if !schema.ShapeOK || !schema.ColumnsOK {
		ev.failure = r.failure(ref, types.KindSchema, schema.Detail(sheet.Columns, r.expected))
		return ev
	}
	if !schema.NoDuplicateRows {
		ev.failure = r.failure(ref, types.KindDuplicates, schema.Detail(sheet.Columns, r.expected))
		return ev
	}

	// Gate 2: missing values.
	if found, columns := validation.HasMissingValues(sheet, r.opts.IncludeNotes, r.opts.MissingTokens); found {
		ev.failure = r.failure(ref, types.KindMissingValues,
			fmt.Sprintf("missing values in column(s): %s", strings.Join(columns, ", ")))
		return ev
	}
	logTransition(ctx, types.StateSchemaChecked).Msg("schema checks passed")

	// Gate 3: field formats.
	if ok, issues := validation.CheckFields(sheet); !ok {
		ev.failure = r.failure(ref, types.KindFormat,
			fmt.Sprintf("%d invalid field(s): %s", len(issues), validation.FormatIssues(issues, detailListLimit)))
		return ev
	}

	// Gate 4: completeness, then consistency.
	if ok, missing := validation.CheckCompleteness(sheet, r.journals); !ok {
		ev.failure = r.failure(ref, types.KindCompleteness,
			fmt.Sprintf("%d registry journal(s) absent: %s", len(missing), limitList(missing)))
		return ev
	}
	if ok, mismatched := validation.CheckConsistency(r.issns, validation.SheetISSNs(sheet)); !ok {
		ev.failure = r.failure(ref, types.KindConsistency,
			fmt.Sprintf("%d journal(s) with an ISSN differing from the registry: %s", len(mismatched), limitList(mismatched)))
		return ev
	}
	logTransition(ctx, types.StateReferentiallyChecked).Msg("referential checks passed")

	return ev
}

// =============================================================================
// COMMIT
// =============================================================================

// commit records the evaluation outcome and, for a validated sheet, merges
// it and records it in the ledger.
func (r *run) commit(ctx context.Context, ev evaluation) {
	ctx = logging.WithSheet(ctx, ev.ref.ID, ev.ref.Institution)

	if ev.failure != nil {
		r.reject(ctx, ev.ref, ev.failure)
		return
	}

	sheet := ev.sheet

	// A sheet listed twice is merged once.
	if r.ledger.IsAlreadyMerged(ev.ref.ID) {
		r.skip(ctx, ev.ref)
		return
	}

	if r.opts.DryRun {
		r.outcome(ev.ref, types.StateReferentiallyChecked, 0)
		return
	}

	records := sheet.Records()
	r.persistArtifact(ctx, sheet, records)

	rows := types.TagRecords(sheet.Institution, records)

	if committer, ok := r.deps.Dataset.(AtomicCommitter); ok {
		r.commitAtomic(ctx, ev.ref, committer, rows)
		return
	}

	// Merge.
	merged := r.dataset.Prepend(rows)
	if err := r.deps.Dataset.PersistDataset(ctx, merged); err != nil {
		r.partial(ctx, ev.ref, types.KindMergeIO, 0,
			fmt.Sprintf("dataset not persisted, sheet not merged: %v", err))
		return
	}
	r.dataset = merged
	logTransition(ctx, types.StateMerged).Int("rows", len(rows)).Msg("rows merged")

	// Ledger.
	if err := r.ledger.RecordMerged(ctx, ev.ref.ID, ev.ref.Institution); err != nil {
		r.partial(ctx, ev.ref, types.KindLedgerIO, len(rows),
			fmt.Sprintf("%d rows merged but not recorded in the ledger; the next run will merge them again as duplicates: %v", len(rows), err))
		return
	}

	r.outcome(ev.ref, types.StateLedgerRecorded, len(rows))
	logTransition(ctx, types.StateLedgerRecorded).Int("rows", len(rows)).Msg("sheet merged")
}

// commitAtomic persists rows and the ledger entry in one transaction.
func (r *run) commitAtomic(ctx context.Context, ref types.SheetRef, committer AtomicCommitter, rows []types.DatasetRow) {
	entry := r.ledger.Entry(ref.ID, ref.Institution)

	if err := committer.CommitMerge(ctx, rows, entry); err != nil {
		r.partial(ctx, ref, types.KindMergeIO, 0,
			fmt.Sprintf("merge transaction rolled back, nothing persisted: %v", err))
		return
	}

	r.dataset = r.dataset.Prepend(rows)
	if err := r.ledger.MarkMerged(entry); err != nil {
		// Only reachable if the sheet was recorded between the skip check
		// and the commit, which the sequential commit loop rules out.
		logging.FromContext(ctx).Error().Err(err).Msg("ledger view out of step with store")
	}

	r.outcome(ref, types.StateLedgerRecorded, len(rows))
	logTransition(ctx, types.StateLedgerRecorded).Int("rows", len(rows)).Bool("atomic", true).Msg("sheet merged")
}

// persistArtifact writes the standalone copy. Its failure does not affect
// the merge.
func (r *run) persistArtifact(ctx context.Context, sheet *types.SourceSheet, records []types.JournalRecord) {
	if r.deps.Artifacts == nil {
		return
	}
	if err := r.deps.Artifacts.PersistStandaloneSheet(ctx, sheet.Institution, records); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("standalone sheet not persisted")
	}
}

// =============================================================================
// REPORTING
// =============================================================================

func (r *run) failure(ref types.SheetRef, kind types.FailureKind, detail string) *types.FailureRecord {
	return &types.FailureRecord{
		SheetID:     ref.ID,
		Institution: ref.Institution,
		Kind:        kind,
		Detail:      detail,
	}
}

func (r *run) reject(ctx context.Context, ref types.SheetRef, f *types.FailureRecord) {
	r.report.Failures = append(r.report.Failures, *f)
	r.outcome(ref, types.StateRejected, 0)
	logTransition(ctx, types.StateRejected).
		Str("kind", string(f.Kind)).
		Str("detail", f.Detail).
		Msg("sheet rejected")
}

func (r *run) partial(ctx context.Context, ref types.SheetRef, kind types.FailureKind, rows int, detail string) {
	r.report.Failures = append(r.report.Failures, *r.failure(ref, kind, detail))
	r.outcome(ref, types.StatePartialSuccess, rows)
	logging.FromContext(ctx).Error().
		Str("state", string(types.StatePartialSuccess)).
		Str("kind", string(kind)).
		Str("detail", detail).
		Msg("sheet partially merged")
}

func (r *run) skip(ctx context.Context, ref types.SheetRef) {
	r.report.Skipped = append(r.report.Skipped, ref.ID)
	logging.FromContext(ctx).Debug().
		Str("sheet_id", ref.ID).
		Str("institution", ref.Institution).
		Msg("sheet already merged, skipped")
}

func (r *run) outcome(ref types.SheetRef, state types.SheetState, rows int) {
	r.report.Outcomes = append(r.report.Outcomes, types.SheetOutcome{
		SheetID:     ref.ID,
		Institution: ref.Institution,
		State:       state,
		RowsMerged:  rows,
	})
}

func logTransition(ctx context.Context, state types.SheetState) *zerolog.Event {
	level := zerolog.DebugLevel
	if state == types.StateRejected || state == types.StateLedgerRecorded {
		level = zerolog.InfoLevel
	}
	return logging.FromContext(ctx).WithLevel(level).Str("state", string(state))
}

// limitList joins at most detailListLimit names.
func limitList(names []string) string {
	if len(names) <= detailListLimit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:detailListLimit], ", "), len(names)-detailListLimit)
}
