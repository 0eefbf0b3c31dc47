package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/journal-access-sync/internal/issn"
	"github.com/ginjaninja78/journal-access-sync/internal/validation"
)

// issnCmd groups the ISSN helpers.
var issnCmd = &cobra.Command{
	Use:   "issn",
	Short: "Check ISSNs against their check digit",
}

// issnCheckCmd verifies each argument.
var issnCheckCmd = &cobra.Command{
	Use:     "check ISSN...",
	Short:   "Verify the check digit of one or more ISSNs",
	Example: "  journal-sync issn check 0028-0836 0046-225X",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		invalid := 0
		for _, value := range args {
			if msg := validation.CheckISSN(value); msg != "" {
				invalid++
				fmt.Printf("%-12s invalid: %s\n", value, msg)
				continue
			}
			fmt.Printf("%-12s valid\n", value)
		}
		if invalid > 0 {
			return fmt.Errorf("%d of %d ISSN(s) invalid", invalid, len(args))
		}
		return nil
	},
}

// issnDigitCmd prints the check character for a value.
var issnDigitCmd = &cobra.Command{
	Use:   "digit NNNN-NNNC",
	Short: "Print the check character an ISSN should end with",
	Long: `Print the check character computed from the first seven digits. The last
character of the argument is ignored, so "0028-083?" works.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := issn.CheckDigit(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s%c\n", args[0][:issn.Length-1], c)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(issnCmd)
	issnCmd.AddCommand(issnCheckCmd, issnDigitCmd)
}
