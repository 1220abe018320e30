package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/kicketl/internal/source"
)

// newInspectCommand creates the inspect command.
func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Inspect the source export without loading",
		Long: `Read the campaign CSV and print a data-quality summary: row count,
null-name count, and the distinct state values with their frequencies.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := source.Read(cfg.SourcePath)
			if err != nil {
				return err
			}

			summary := source.Inspect(records)
			fmt.Fprintf(cmd.OutOrStdout(), "Source: %s\n", cfg.SourcePath)
			if summary.NullNames > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Rows with null name: %d (dropped at transform)\n", summary.NullNames)
			}
			summary.Render(cmd.OutOrStdout())
			return nil
		},
	}
}
