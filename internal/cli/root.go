// Package cli provides the command-line interface for kicketl.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/kicketl/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kicketl",
		Short: "kicketl - Campaign Warehouse ETL",
		Long: `kicketl loads a flat export of crowdfunding campaign records into a
star-schema warehouse: one fact table of campaign measures and conformed
state, category, and date dimensions.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			return err
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Campaign Warehouse ETL
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./kicketl.yaml)")
	rootCmd.PersistentFlags().String("source", "", "Path to the campaign CSV export")
	rootCmd.PersistentFlags().String("warehouse-type", "", "Warehouse backend (duckdb|sqlite)")
	rootCmd.PersistentFlags().String("warehouse-path", "", "Warehouse database path")
	rootCmd.PersistentFlags().String("runs-path", "", "Run-ledger database path")
	rootCmd.PersistentFlags().String("log-file", "", "Log file path (empty disables the file sink)")
	rootCmd.PersistentFlags().String("on-missing-key", "", "Missing dimension key policy (fail|unknown)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("warehouse-type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"duckdb", "sqlite"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("on-missing-key", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"fail", "unknown"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newSchemaCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
