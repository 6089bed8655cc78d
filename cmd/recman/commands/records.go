package commands

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recman/recman/pkg/records"
)

// recordFlags are the field flags shared by add and update.
type recordFlags struct {
	name       string
	age        int
	department string
	salary     float64
}

func (f *recordFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "name", "", "record name")
	cmd.Flags().IntVar(&f.age, "age", 0, "record age")
	cmd.Flags().StringVar(&f.department, "department", "", "department (department layout)")
	cmd.Flags().Float64Var(&f.salary, "salary", 0, "salary (salary layout)")
}

// patch returns the fields whose flags were set on the command line.
func (f *recordFlags) patch(cmd *cobra.Command) records.Patch {
	var p records.Patch
	if cmd.Flags().Changed("name") {
		p.Name = records.StringPtr(f.name)
	}
	if cmd.Flags().Changed("age") {
		p.Age = records.IntPtr(f.age)
	}
	if cmd.Flags().Changed("department") {
		p.Department = records.StringPtr(f.department)
	}
	if cmd.Flags().Changed("salary") {
		p.Salary = records.FloatPtr(f.salary)
	}
	return p
}

func newAddCommand() *cobra.Command {
	var (
		id     string
		fields recordFlags
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a record",
		Long: `Add a record and save the store.

A blank --id is replaced by a random UUID. Adding an id that already exists
fails and changes nothing.`,
		Example: `  # Add a record to the configured store
  recman add --id 3 --name Carol --age 35 --department Ops

  # Let recman pick the id
  recman add --name Dan --age 40 --salary 5200`,
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

			if id == "" {
				id = uuid.NewString()
			}
			r := records.Record{ID: id}
			fields.patch(cmd).Apply(&r)

			if err := store.Add(e.ctx, r); err != nil {
				return err
			}
			if err := store.Save(e.ctx); err != nil {
				return err
			}

			log.Info().Str("id", id).Msg("Record added")
			fmt.Fprintln(cmd.OutOrStdout(), records.Format(r, records.DisplayRegular))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "record id (default: random UUID)")
	fields.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("age")

	return cmd
}

func newUpdateCommand() *cobra.Command {
	var fields recordFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update fields of a record",
		Long: `Replace the given fields of the first record with the id and save the
store. Fields without a flag keep their value.`,
		Example: `  # Change an age
  recman update 2 --age 31

  # Change name and department
  recman update 2 --name Robert --department Finance`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			patch := fields.patch(cmd)
			if patch.Empty() {
				return fmt.Errorf("nothing to update: set at least one of --name, --age, --department, --salary")
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

			if err := store.Update(e.ctx, id, patch); err != nil {
				return err
			}
			if err := store.Save(e.ctx); err != nil {
				return err
			}

			r, _ := store.Get(id)
			log.Info().Str("id", id).Msg("Record updated")
			fmt.Fprintln(cmd.OutOrStdout(), records.Format(r, records.DisplayRegular))
			return nil
		},
	}

	fields.register(cmd)

	return cmd
}

func newDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete every record with an id",
		Long: `Delete every record with the id and save the store. Deleting an id that
does not exist is reported but is not an error.`,
		Example: `  recman delete 2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

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

			n, err := store.Delete(e.ctx, id)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Record not found.")
				return nil
			}
			if err := store.Save(e.ctx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d record(s) deleted.\n", n)
			return nil
		},
	}

	return cmd
}
