// =============================================================================
// Journal Access Sync - Engine Dependencies
// =============================================================================
//
// The engine reaches sheets, the registry, the ledger and the dataset only
// through these interfaces. The folder and file stores, the SQL store and
// the artifact backends implement them; tests substitute fakes.
//
// =============================================================================

package reconcile

import (
	"context"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
)

// SheetSource lists and fetches institution sheets.
type SheetSource interface {
	// ListSheets returns the sheets to consider, in processing order.
	ListSheets(ctx context.Context) ([]types.SheetRef, error)

	// FetchSheet reads one sheet. Failures are returned as a FetchError.
	FetchSheet(ctx context.Context, ref types.SheetRef) (*types.SourceSheet, error)
}

// RegistrySource loads the canonical journal registry.
type RegistrySource interface {
	FetchRegistry(ctx context.Context) (*types.CanonicalRegistry, error)
}

// LedgerStore persists the merge ledger.
type LedgerStore interface {
	LoadLedgerSnapshot(ctx context.Context) ([]types.LedgerEntry, error)
	AppendLedgerEntry(ctx context.Context, entry types.LedgerEntry) error
}

// DatasetStore persists the consolidated dataset.
type DatasetStore interface {
	LoadDataset(ctx context.Context) (*types.ConsolidatedDataset, error)
	PersistDataset(ctx context.Context, dataset *types.ConsolidatedDataset) error
}

// AtomicCommitter is implemented by dataset stores that can persist a
// sheet's rows and its ledger entry in one transaction. When the dataset
// store implements it, the engine uses it instead of PersistDataset
// followed by a ledger append.
type AtomicCommitter interface {
	CommitMerge(ctx context.Context, rows []types.DatasetRow, entry types.LedgerEntry) error
}

// ArtifactStore keeps a standalone copy of each merged institution sheet.
type ArtifactStore interface {
	PersistStandaloneSheet(ctx context.Context, institution string, records []types.JournalRecord) error
}
