package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// newSchemaCommand creates the schema command.
func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Apply the warehouse schema",
		Long: `Materialize the four warehouse tables (Dim_Date, Dim_State,
Dim_Category, Fact_Campaigns) from the embedded DDL for the configured
backend. Safe to run against an already-created schema.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := context.Background()

			wh, err := warehouse.NewAdapter(warehouse.Config{
				Type: cfg.Warehouse.Type,
				Path: cfg.Warehouse.Path,
			})
			if err != nil {
				return err
			}
			if err := wh.Connect(ctx, warehouse.Config{Type: cfg.Warehouse.Type, Path: cfg.Warehouse.Path}); err != nil {
				return fmt.Errorf("failed to connect to warehouse: %w", err)
			}
			defer func() { _ = wh.Close() }()

			if err := wh.EnsureSchema(ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Warehouse schema applied (%s: %s)\n",
				wh.DialectName(), cfg.Warehouse.Path)
			return nil
		},
	}
}
