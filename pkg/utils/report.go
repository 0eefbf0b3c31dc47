package utils

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
)

const reportRule = "================================================================================\n"

// =============================================================================
// FAILURE REPORT
// =============================================================================

// WriteFailureReport writes the failure records of a run to
// <outputDir>/failure_report_<timestamp>.txt.
//
// RETURNS:
//   - The path to the report, or "" when the run had no failures.
//   - An error if writing fails.
func WriteFailureReport(report *types.Report, outputDir string) (string, error) {
	if len(report.Failures) == 0 {
		return "", nil
	}

	path := filepath.Join(outputDir,
		fmt.Sprintf("failure_report_%s.txt", report.StartedAt.Format("20060102_150405")))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		return RenderFailureReport(w, report)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write failure report: %w", err)
	}

	return path, nil
}

// RenderFailureReport writes the failure report text to w.
func RenderFailureReport(w io.Writer, report *types.Report) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Journal Access Sync - Failure Report\n"+
		"Run:            %s\n"+
		"Generated:      %s\n"+
		"Total Failures: %d\n"+
		reportRule+"\n",
		report.RunID,
		report.FinishedAt.Format("2006-01-02 15:04:05"),
		len(report.Failures))

	for i, f := range report.Failures {
		fmt.Fprintf(&b, "Failure #%d\n"+
			"  Sheet:       %s\n"+
			"  Institution: %s\n"+
			"  Kind:        %s\n"+
			"  Detail:      %s\n\n",
			i+1, f.SheetID, f.Institution, f.Kind, f.Detail)
	}

	b.WriteString(reportRule + "End of Failure Report\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// WriteSummaryReport writes the run summary to
// <outputDir>/processing_summary_<timestamp>.txt.
func WriteSummaryReport(report *types.Report, outputDir string) (string, error) {
	path := filepath.Join(outputDir,
		fmt.Sprintf("processing_summary_%s.txt", report.StartedAt.Format("20060102_150405")))

	err := WriteFileAtomic(path, func(w io.Writer) error {
		return RenderSummary(w, report)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write summary file: %w", err)
	}

	return path, nil
}

// RenderSummary writes the summary text to w.
func RenderSummary(w io.Writer, report *types.Report) error {
	var b strings.Builder

	rows := 0
	for _, o := range report.Outcomes {
		rows += o.RowsMerged
	}

	fmt.Fprintf(&b, "Journal Access Sync - Processing Summary\n"+
		reportRule+"\n"+
		"Run Information:\n"+
		"  Run ID:         %s\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n"+
		"  Cancelled:      %t\n\n"+
		"Statistics:\n"+
		"  Sheets Handled:  %d\n"+
		"  Merged:          %d\n"+
		"  Skipped:         %d\n"+
		"  Failures:        %d\n"+
		"  I/O Failures:    %d\n"+
		"  Rows Merged:     %d\n\n",
		report.RunID,
		report.StartedAt.Format("2006-01-02 15:04:05"),
		report.FinishedAt.Format("2006-01-02 15:04:05"),
		report.FinishedAt.Sub(report.StartedAt).String(),
		report.Cancelled,
		len(report.Outcomes),
		report.Merged(),
		len(report.Skipped),
		len(report.Failures),
		ioFailures(report),
		rows)

	if counts := report.FailuresByKind(); len(counts) > 0 {
		kinds := make([]string, 0, len(counts))
		for k := range counts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		b.WriteString("Failures By Kind:\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "  %-15s %d\n", k+":", counts[types.FailureKind(k)])
		}
		b.WriteString("\n")
	}

	if len(report.Outcomes) > 0 {
		b.WriteString("Sheets:\n")
		b.WriteString("--------------------------------------------------------------------------------\n")
		for _, o := range report.Outcomes {
			fmt.Fprintf(&b, "  %-30s %-30s %-16s %d rows\n", o.SheetID, o.Institution, o.State, o.RowsMerged)
		}
		b.WriteString("\n")
	}

	if len(report.Skipped) > 0 {
		b.WriteString("Already Merged (skipped):\n")
		for _, id := range report.Skipped {
			fmt.Fprintf(&b, "  %s\n", id)
		}
		b.WriteString("\n")
	}

	b.WriteString(reportRule + "End of Summary\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// ioFailures counts failures caused by the external storage or source layer
// rather than by sheet content.
func ioFailures(report *types.Report) int {
	n := 0
	for _, f := range report.Failures {
		if f.Kind.IsIO() {
			n++
		}
	}
	return n
}
