package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/config"
	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/shell"
	"github.com/recman/recman/pkg/watch"
)

func newWatchCommand() *cobra.Command {
	var (
		format string
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Display records and redisplay them when the CSV file changes",
		Long: `Load the CSV input file, display its records and keep watching it. Every
change to the file reloads the records and displays them again. Stop with
Ctrl+C. Only the csv backend can be watched.`,
		Example: `  # Follow a file in the simple view
  recman watch --input people.csv --format simple`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := records.ParseDisplayMode(format)
			if err != nil {
				return err
			}
			if jsonOutput {
				mode = records.DisplayJSON
			}

			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			if e.cfg.Backend != config.BackendCSV {
				return fmt.Errorf("watch needs the csv backend, not %s", e.cfg.Backend)
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			show := func(ctx context.Context) error {
				if err := shell.Summarize(out, store, store.Load(ctx)); err != nil {
					return err
				}
				return store.Display(out, mode)
			}
			if err := show(e.ctx); err != nil {
				return err
			}

			w, err := watch.New(e.cfg.CSV.Input,
				watch.WithDelay(delay),
				watch.WithLogger(e.tel.Logger.NewComponentLogger("watch").Zerolog()),
			)
			if err != nil {
				return err
			}
			defer w.Close()

			return w.Run(e.ctx, func(ctx context.Context, event fsnotify.Event) error {
				fmt.Fprintf(out, "\n%s changed (%s), reloading\n", w.Path(), event.Op)
				return show(ctx)
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "regular", "display format (regular, detailed, simple, json)")
	cmd.Flags().DurationVar(&delay, "delay", watch.DefaultDelay, "quiet period before reloading")

	return cmd
}
