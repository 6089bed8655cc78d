package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/records"
)

func newShowCommand() *cobra.Command {
	var (
		format string
		id     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display records",
		Long: `Display every record, or one record by id.

Formats:
  - regular: all fields on one line
  - detailed: one labeled field per line under a [Detailed View] header
  - simple: id and name only
  - json: one JSON object per line`,
		Example: `  # List all records
  recman show

  # Detailed view of one record
  recman show --id 2 --format detailed

  # JSON lines
  recman show --json`,
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

			store, err := e.loadStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if id == "" {
				return store.Display(cmd.OutOrStdout(), mode)
			}

			r, ok := store.Get(id)
			if !ok {
				return records.NewNotFoundError(fmt.Sprintf("record %s not found", id), nil).WithRecord(id)
			}
			return records.Render(cmd.OutOrStdout(), []records.Record{r}, mode)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "regular", "display format (regular, detailed, simple, json)")
	cmd.Flags().StringVar(&id, "id", "", "show only the record with this id")

	return cmd
}
