package cmd

import (
	"github.com/spf13/cobra"
)

// validateCmd runs every check on new sheets without merging.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and every new sheet without merging",
	Long: `The validate command loads the configuration, the registry and the ledger,
then runs every check on the sheets not yet merged. Nothing is written to the
dataset, the ledger or the artifacts backend; the failure report and summary
are still written to the output directory.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runProcess(cmd.Context(), cfg, runOptions{
			dryRun:       true,
			institutions: institutionCodes,
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addRunFlags(validateCmd)
}
