package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/config"
	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and prepare the backend",
		Long: `Write a default configuration file and prepare the selected backend.

For the csv backend an input file holding only the header row is created
when none exists. For the sqlite backend the database is created and
migrated. An existing config file is kept unless --force is given.`,
		Example: `  # CSV workspace in the current directory
  recman init

  # SQLite workspace with a custom config path
  recman init --backend sqlite --db data/records.db --config data/recman.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				path = config.DefaultPath
			}

			log.Info().
				Str("config", path).
				Str("backend", overrides.Backend).
				Msg("Initializing workspace")

			cfg := config.Default()
			_, statErr := os.Stat(path)
			exists := statErr == nil
			if exists && !force {
				var err error
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if err := cfg.Apply(overrides); err != nil {
				return err
			}

			if exists && !force {
				fmt.Fprintf(out, "✓ Config file already exists: %s\n", path)
			} else {
				if err := cfg.Write(path); err != nil {
					return fmt.Errorf("failed to write config file: %w", err)
				}
				fmt.Fprintf(out, "✓ Created config file: %s\n", path)
			}

			switch cfg.Backend {
			case config.BackendCSV:
				created, err := initCSV(cfg.CSV)
				if err != nil {
					return err
				}
				if created {
					fmt.Fprintf(out, "✓ Created CSV file: %s\n", cfg.CSV.Input)
				} else {
					fmt.Fprintf(out, "✓ CSV file already exists: %s\n", cfg.CSV.Input)
				}

			case config.BackendSQLite:
				if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
					if err := os.MkdirAll(dir, 0755); err != nil {
						return fmt.Errorf("failed to create directory %s: %w", dir, err)
					}
				}
				store, err := stores.OpenSQLiteStore(cmd.Context(), stores.Config{
					Path:        cfg.SQLite.Path,
					BusyTimeout: cfg.SQLite.BusyTimeout,
				})
				if err != nil {
					return fmt.Errorf("failed to initialize database: %w", err)
				}
				if err := store.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ Initialized SQLite database: %s\n", cfg.SQLite.Path)

			case config.BackendRedis:
				fmt.Fprintf(out, "✓ Redis backend at %s needs no setup\n", cfg.Redis.Addr)
			}

			fmt.Fprintln(out, "\nWorkspace ready. Run 'recman' to open the menu.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

// initCSV writes a header-only input file when none exists.
func initCSV(cfg config.CSVConfig) (bool, error) {
	if _, err := os.Stat(cfg.Input); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}

	layout, err := records.ParseLayout(cfg.Layout)
	if err != nil {
		return false, err
	}
	if dir := filepath.Dir(cfg.Input); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	header := strings.Join(layout.Columns(), ",") + "\n"
	if err := os.WriteFile(cfg.Input, []byte(header), 0644); err != nil {
		return false, fmt.Errorf("failed to write CSV file: %w", err)
	}
	return true, nil
}
