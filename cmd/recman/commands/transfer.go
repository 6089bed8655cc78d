package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/stores"
)

func newImportCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Copy records from a CSV file into the store",
		Long: `Read every row of a CSV file (no row cap) and write it into the configured
store. Records whose id already exists are overwritten, new ids are
appended. Malformed rows are skipped and reported unless --strict is set.`,
		Example: `  # Seed an SQLite database from a CSV export
  recman import people.csv --backend sqlite --db records.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			source, err := stores.NewCSVStore(stores.CSVConfig{
				Input:   args[0],
				MaxRows: -1,
				Strict:  strict,
			})
			if err != nil {
				return err
			}

			recs, err := source.Load(e.ctx)
			if err != nil {
				if !records.IsFormat(err) || strict {
					return err
				}
				log.Warn().Err(err).Msg("Some rows could not be read and were skipped")
			}

			store, err := e.loadStore()
			if err != nil {
				return err
			}
			defer store.Close()

			added, updated := 0, 0
			for _, r := range recs {
				if _, ok := store.Get(r.ID); ok {
					p := records.Patch{
						Name:       records.StringPtr(r.Name),
						Age:        records.IntPtr(r.Age),
						Department: records.StringPtr(r.Department),
						Salary:     r.Salary,
					}
					if err := store.Update(e.ctx, r.ID, p); err != nil {
						return err
					}
					updated++
					continue
				}
				if err := store.Add(e.ctx, r); err != nil {
					return err
				}
				added++
			}

			if err := store.Save(e.ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d records imported (%d added, %d updated).\n",
				added+updated, added, updated)
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "stop at the first malformed row")

	return cmd
}

func newExportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the store's records to a CSV file",
		Long: `Load the configured store and write every record to a CSV file. Use "-"
to write to standard output. The layout follows the loaded source, or the
configured csv.layout for database backends.`,
		Example: `  # Dump an SQLite database as CSV
  recman export people.csv --backend sqlite

  # Print as CSV
  recman export -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			layout := e.layout()
			if src, ok := store.Backend().(*stores.CSVStore); ok {
				layout = src.Layout()
			}

			path := args[0]
			dst, err := stores.NewCSVStore(stores.CSVConfig{
				Input:  path,
				Output: path,
				Layout: layout,
			})
			if err != nil {
				return err
			}

			if path == "-" {
				return dst.Write(cmd.OutOrStdout(), store.Records())
			}
			if err := dst.Save(e.ctx, store.Records()); err != nil {
				return err
			}

			log.Info().Str("path", path).Int("records", store.Len()).Msg("Records exported")
			return nil
		},
	}

	return cmd
}
