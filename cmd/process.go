// =============================================================================
// Journal Access Sync - Process Command
// =============================================================================
//
// This file defines the 'process' command, which validates new institution
// sheets and merges the ones that pass.
//
// COMMAND USAGE:
//   journal-sync process [flags]
//
// FLAGS:
//   --dry-run          : Validate every sheet without merging anything
//   --institution      : Process only the given institution code(s)
//   --max-concurrency  : Sheets fetched and validated at once
//   --expected-rows    : Required row count (0 = registry size)
//
// PROCESSING PIPELINE:
//   1. Load configuration and institution configs
//   2. Load the registry, the ledger and the consolidated dataset
//   3. Skip sheets already in the ledger
//   4. Validate each remaining sheet; merge and record the ones that pass
//   5. Write the failure report and the processing summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/logging"
	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun validates without merging.
var dryRun bool

// institutionCodes restricts processing to these institutions.
var institutionCodes []string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate new institution sheets and merge the ones that pass",
	Long: `The process command lists the sheets in the input directory, skips the ones
already recorded in the merge ledger and takes every other sheet through the
checks:

  1. schema         exact columns, expected row count, no duplicate rows
  2. missing values no blank or placeholder cells
  3. format         access is 0 or 1, ISSNs carry a valid check digit
  4. completeness   every registry journal is listed
  5. consistency    every ISSN agrees with the registry

A sheet that passes is tagged with its institution, placed at the top of the
consolidated dataset and recorded in the ledger. A sheet that fails is listed
in the failure report; processing continues with the next sheet.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runProcess(cmd.Context(), cfg, runOptions{
			dryRun:       dryRun,
			institutions: institutionCodes,
		})
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate every sheet without merging anything")
	addRunFlags(processCmd)
}

// addRunFlags registers the flags shared by process and validate.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&institutionCodes, "institution", nil,
		"Process only these institution codes (repeatable)")
	cmd.Flags().Int("max-concurrency", 0, "Sheets fetched and validated at once")
	cmd.Flags().Int("expected-rows", 0, "Required row count per sheet (0 = registry size)")
	cmd.Flags().Bool("include-notes", false, "Also reject blank notes cells")

	// Flags of the running command are bound just before it runs, since
	// process and validate share the keys.
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for key, flag := range map[string]string{
			"max_concurrency": "max-concurrency",
			"expected_rows":   "expected-rows",
			"include_notes":   "include-notes",
		} {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return fmt.Errorf("failed to bind %s flag: %w", flag, err)
			}
		}
		return nil
	}
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess runs one reconciliation batch and writes its reports.
func runProcess(ctx context.Context, cfg *config.MainConfig, opts runOptions) error {
	log := logging.Default()
	ctx = logging.WithLogger(ctx, log)

	// =========================================================================
	// STEP 1: WIRE THE ENGINE
	// =========================================================================

	engine, cleanup, err := buildEngine(ctx, cfg, opts)
	defer cleanup()
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 2: RUN
	// =========================================================================

	report, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("run aborted: %w", err)
	}

	// =========================================================================
	// STEP 3: REPORTS
	// =========================================================================

	if path, err := utils.WriteFailureReport(report, cfg.OutputDir); err != nil {
		log.Error().Err(err).Msg("failure report not written")
	} else if path != "" {
		log.Info().Str("path", path).Msg("failure report written")
	}

	if path, err := utils.WriteSummaryReport(report, cfg.OutputDir); err != nil {
		log.Error().Err(err).Msg("summary not written")
	} else {
		log.Info().Str("path", path).Msg("summary written")
	}

	printResults(report, opts.dryRun)

	if report.Cancelled {
		return fmt.Errorf("run cancelled after %d of the pending sheets", len(report.Outcomes))
	}
	return nil
}

// printResults prints one line per sheet and the totals.
func printResults(report *types.Report, dryRun bool) {
	title := "Processing Complete"
	if dryRun {
		title = "Validation Complete (dry run, nothing merged)"
	}

	for _, o := range report.Outcomes {
		mark := "✗"
		switch o.State {
		case types.StateLedgerRecorded, types.StateReferentiallyChecked:
			mark = "✓"
		case types.StatePartialSuccess:
			mark = "!"
		}
		fmt.Printf("  %s %s (%s): %s\n", mark, o.SheetID, o.Institution, o.State)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "  %s [%s] %s\n", f.SheetID, f.Kind, f.Detail)
	}

	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("Sheets handled:  %d\n", len(report.Outcomes))
	fmt.Printf("Merged:          %d\n", report.Merged())
	fmt.Printf("Already merged:  %d\n", len(report.Skipped))
	fmt.Printf("Failures:        %d\n", len(report.Failures))
	fmt.Printf("Time elapsed:    %s\n", report.FinishedAt.Sub(report.StartedAt))
}
