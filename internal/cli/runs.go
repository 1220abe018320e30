package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/dataforge-labs/kicketl/internal/state"
)

// newRunsCommand creates the runs command.
func newRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := state.NewStore(nil)
			if err := store.Open(cfg.RunsPath); err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			if err := store.Migrate(); err != nil {
				return err
			}

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no runs recorded)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"run", "status", "started", "facts", "dropped", "error"})
			for _, r := range runs {
				t.AppendRow(table.Row{
					r.ID[:8], r.Status, r.StartedAt.Format("2006-01-02 15:04:05"),
					r.Counts.Facts, r.Counts.Dropped, r.Error,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	return cmd
}
