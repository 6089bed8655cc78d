package commands

import (
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/config"
	"github.com/recman/recman/pkg/shell"
)

func newShellCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive menu",
		Long: `Open the numbered menu to display, add, update, delete, save and reload
records. The store is loaded on start; for the csv backend changes are only
written when you choose "Save Records".`,
		Example: `  # Menu over the configured backend
  recman shell

  # Menu over a specific CSV file
  recman shell --input people.csv --output people.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd)
		},
	}

	return cmd
}

func runShell(cmd *cobra.Command) error {
	e, err := newEnv(cmd)
	if err != nil {
		return err
	}
	defer e.close()

	store, err := e.openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var opts []shell.Option
	if e.cfg.Backend != config.BackendCSV {
		opts = append(opts, shell.WithLayout(e.layout()))
	}

	sh := shell.New(store, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
	return sh.Run(e.ctx)
}
