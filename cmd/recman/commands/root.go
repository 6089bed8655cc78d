package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/config"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
	overrides  config.Overrides
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recman",
		Short: "recman - a small record manager",
		Long: `recman keeps a list of people records (id, name, age and a department or
salary) in a CSV file, an SQLite database or Redis.

Run without a subcommand to open the interactive menu.

Backends:
  - csv: loads from csv.input, writes the whole file to csv.output on save
  - sqlite: every change is written to the records table immediately
  - redis: every change is written to a hash per record immediately`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd)
		},
	}

	// Persistent flags available to all commands
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "config file path (default "+config.DefaultPath+")")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&jsonOutput, "json", false, "output in JSON format")
	flags.StringVar(&overrides.Backend, "backend", "", "store backend (csv, sqlite, redis)")
	flags.StringVar(&overrides.Input, "input", "", "CSV file to load records from")
	flags.StringVar(&overrides.Output, "output", "", "CSV file to save records to")
	flags.StringVar(&overrides.DBPath, "db", "", "SQLite database path")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newShellCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newAddCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newDeleteCommand())
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}
