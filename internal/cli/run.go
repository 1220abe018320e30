package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/kicketl/internal/fact"
	"github.com/dataforge-labs/kicketl/internal/logging"
	"github.com/dataforge-labs/kicketl/internal/pipeline"
	"github.com/dataforge-labs/kicketl/internal/state"
	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// newRunCommand creates the run command.
func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full ETL pipeline",
		Long: `Extract the campaign CSV, transform it, and load the star schema.

Dimensions load before facts; each run is recorded in the run ledger.`,
		Example: `  # Load with settings from kicketl.yaml
  kicketl run

  # Load a specific export into a SQLite warehouse
  kicketl run --source data/raw/ks-projects-201801.csv --warehouse-type sqlite --warehouse-path warehouse.db`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, closeLog, err := logging.New(logging.Options{
				File:    cfg.LogFile,
				Verbose: cfg.Verbose,
			})
			if err != nil {
				return fmt.Errorf("failed to set up logging: %w", err)
			}
			defer func() { _ = closeLog() }()

			policy, err := fact.ParsePolicy(cfg.Load.OnMissingKey)
			if err != nil {
				return err
			}

			p, err := pipeline.New(pipeline.Config{
				SourcePath: cfg.SourcePath,
				Warehouse: warehouse.Config{
					Type: cfg.Warehouse.Type,
					Path: cfg.Warehouse.Path,
				},
				RunsPath:     cfg.RunsPath,
				OnMissingKey: policy,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			startTime := time.Now()
			run, err := p.Run(context.Background())
			if run != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %s\n", run.ID, run.Status)
				if run.Status == state.RunStatusCompleted {
					fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d facts (%d rows dropped) in %s\n",
						run.Counts.Facts, run.Counts.Dropped,
						time.Since(startTime).Round(time.Millisecond))
				}
			}
			return err
		},
	}
}
