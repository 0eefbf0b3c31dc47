// =============================================================================
// Journal Access Sync - Engine Wiring
// =============================================================================
//
// Builds the stores, sources and artifact backend selected by the
// configuration and assembles them into a reconcile.Engine for the
// process and validate commands.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/ginjaninja78/journal-access-sync/internal/artifacts"
	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/reconcile"
	"github.com/ginjaninja78/journal-access-sync/internal/sources"
	"github.com/ginjaninja78/journal-access-sync/internal/store"
	"github.com/ginjaninja78/journal-access-sync/internal/validation"
)

// stores holds the dataset and ledger store selected by configuration.
type stores struct {
	dataset reconcile.DatasetStore
	ledger  reconcile.LedgerStore
	closer  io.Closer
}

func (s *stores) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// openStores opens the store named by cfg.Store.Driver. The SQL store
// serves as both dataset and ledger store and commits them together.
func openStores(ctx context.Context, cfg *config.MainConfig) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverFile:
		fs := store.NewFileStore(cfg.Store.DatasetFile, cfg.Store.LedgerFile, cfg.Store.LedgerFormat)
		return &stores{dataset: fs, ledger: fs}, nil
	case config.DriverSQLite, config.DriverPostgres:
		db, err := store.OpenSQL(ctx, cfg.Store.Driver, cfg.Store.DSN, cfg.Store.DatasetFile)
		if err != nil {
			return nil, err
		}
		return &stores{dataset: db, ledger: db, closer: db}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

// runOptions are the per-command engine settings.
type runOptions struct {
	dryRun       bool
	institutions []string
}

// buildEngine wires the configured sources and stores into an engine.
//
// RETURNS:
//   - The engine.
//   - A cleanup function releasing the stores; always safe to call.
//   - An error if a config, store or backend cannot be set up.
func buildEngine(ctx context.Context, cfg *config.MainConfig, opts runOptions) (*reconcile.Engine, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	institutions, err := config.LoadInstitutionConfigs(cfg.ConfigsDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("failed to load institution configs: %w", err)
	}
	institutions, err = filterInstitutions(institutions, opts.institutions)
	if err != nil {
		return nil, cleanup, err
	}
	if len(institutions) == 0 {
		return nil, cleanup, fmt.Errorf("no institution configs found in %s", cfg.ConfigsDir)
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, cleanup, err
	}
	closers = append(closers, st)

	deps := reconcile.Dependencies{
		Sheets:   sources.NewFolderSource(cfg.InputDir, institutions, cfg.CSVSettings),
		Registry: sources.NewFileRegistry(cfg.RegistryFile, cfg.CSVSettings),
		Ledger:   st.ledger,
		Dataset:  st.dataset,
	}

	if !opts.dryRun {
		archive, err := artifacts.New(ctx, cfg.Artifacts)
		if err != nil {
			return nil, cleanup, fmt.Errorf("failed to set up artifacts backend: %w", err)
		}
		if archive != nil {
			deps.Artifacts = archive
			if c, ok := archive.(io.Closer); ok {
				closers = append(closers, c)
			}
		}
	}

	engineOpts := reconcile.Options{
		ExpectedRows:   cfg.ExpectedRows,
		IncludeNotes:   cfg.IncludeNotes,
		MaxConcurrency: cfg.MaxConcurrency,
		DryRun:         opts.dryRun,
	}
	if len(cfg.MissingTokens) > 0 {
		engineOpts.MissingTokens = validation.NewMissingTokens(cfg.MissingTokens)
	}

	return reconcile.New(deps, engineOpts), cleanup, nil
}

// filterInstitutions keeps the configs whose code is listed. An empty list
// keeps every config.
func filterInstitutions(all []*config.InstitutionConfig, codes []string) ([]*config.InstitutionConfig, error) {
	if len(codes) == 0 {
		return all, nil
	}

	byCode := make(map[string]*config.InstitutionConfig, len(all))
	for _, inst := range all {
		byCode[inst.InstitutionCode] = inst
	}

	var kept []*config.InstitutionConfig
	for _, code := range codes {
		inst, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("unknown institution code %q", code)
		}
		kept = append(kept, inst)
	}
	return kept, nil
}
