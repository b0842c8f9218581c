package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sctrace/internal/elfsym"
)

var symbolsPattern string

var symbolsCmd = &cobra.Command{
	Use:     "symbols BINARY",
	Short:   "List the function symbols of a binary that can be traced",
	Example: `  sctrace symbols ./app --pattern main.`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := elfsym.FunctionSymbols(args[0], symbolsPattern)
		if err != nil {
			return fmt.Errorf("read symbols of %s: %w", args[0], err)
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	symbolsCmd.Flags().StringVarP(&symbolsPattern, "pattern", "p", "", "only list symbols containing this text")
}
