package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/journal-access-sync/internal/ledger"
)

var ledgerJSON bool

// ledgerCmd groups the merge ledger commands.
var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect the merge ledger",
}

// ledgerListCmd prints every merged sheet.
var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List merged sheets in merge order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		st, err := openStores(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		snapshot, err := st.ledger.LoadLedgerSnapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		// Same view the engine uses: the first entry per sheet wins.
		entries := ledger.New(snapshot, nil).Entries()

		if ledgerJSON {
			enc := json.NewEncoder(os.Stdout)
			for _, e := range entries {
				if err := enc.Encode(map[string]string{
					"sheet_id":    e.SheetID,
					"institution": e.Institution,
					"merged_at":   e.MergedAt.Format(time.RFC3339),
					"run_id":      e.RunID,
				}); err != nil {
					return err
				}
			}
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SHEET\tINSTITUTION\tMERGED AT\tRUN")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.SheetID, e.Institution, e.MergedAt.Format(time.RFC3339), e.RunID)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\n%d merged sheet(s)\n", len(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd)
	ledgerListCmd.Flags().BoolVar(&ledgerJSON, "json", false, "Print one JSON object per line")
}
