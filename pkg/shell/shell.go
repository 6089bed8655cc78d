// Package shell implements the interactive record menu.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/telemetry"
)

// errExit ends the menu loop without an error.
var errExit = errors.New("exit")

const menu = `
--- Menu ---
1. Display Records (Regular View)
2. Display Records (Detailed View)
3. Display Records (Simple View)
4. Add Record
5. Update Record
6. Delete Record
7. Save Records
8. Reload Data
0. Exit
`

// Shell runs the numbered menu against one store. The store is owned by the
// caller, which must close it once Run returns.
type Shell struct {
	store  *records.Store
	in     io.Reader
	out    io.Writer
	layout records.Layout
	newID  func() string
}

// Option configures a Shell.
type Option func(*Shell)

// WithLayout selects which auxiliary field (department or salary) the add
// and update prompts ask for. Without it the backend's layout is used when
// the backend reports one, and the department layout otherwise.
func WithLayout(l records.Layout) Option {
	return func(s *Shell) {
		s.layout = l
	}
}

// WithIDGenerator replaces the generator used for blank ids on add.
func WithIDGenerator(fn func() string) Option {
	return func(s *Shell) {
		s.newID = fn
	}
}

// New creates a shell reading answers from in and writing to out.
func New(store *records.Store, in io.Reader, out io.Writer, opts ...Option) *Shell {
	s := &Shell{
		store: store,
		in:    in,
		out:   out,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session is one run of the menu loop.
type session struct {
	*Shell
	lines  <-chan string
	logger *telemetry.Logger
}

// Run loads the store and serves the menu until the user exits, input ends
// or ctx is cancelled. None of these is an error.
func (s *Shell) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)

	sess := &session{
		Shell:  s,
		lines:  readLines(s.in, done),
		logger: telemetry.FromContext(ctx).NewComponentLogger("shell"),
	}

	sess.reload(ctx, "")

	for {
		fmt.Fprint(s.out, menu)
		choice, err := sess.prompt(ctx, "Enter your choice: ")
		if err != nil {
			return sess.finish(err)
		}

		if err := sess.dispatch(ctx, strings.TrimSpace(choice)); err != nil {
			return sess.finish(err)
		}
	}
}

func (s *session) finish(err error) error {
	switch {
	case errors.Is(err, errExit):
	case errors.Is(err, io.EOF):
		fmt.Fprintln(s.out)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintln(s.out, "\nInterrupted.")
	default:
		return err
	}
	s.logger.Debug("Shell finished")
	return nil
}

func (s *session) dispatch(ctx context.Context, choice string) error {
	switch choice {
	case "1":
		s.display(records.DisplayRegular)
	case "2":
		s.display(records.DisplayDetailed)
	case "3":
		s.display(records.DisplaySimple)
	case "4":
		return s.add(ctx)
	case "5":
		return s.update(ctx)
	case "6":
		return s.delete(ctx)
	case "7":
		s.save(ctx)
	case "8":
		path, err := s.prompt(ctx, "Enter the filename to reload data from (blank for the configured source): ")
		if err != nil {
			return err
		}
		s.reload(ctx, strings.TrimSpace(path))
	case "0":
		return errExit
	default:
		fmt.Fprintln(s.out, "Invalid choice. Please try again.")
	}
	return nil
}

func (s *session) display(mode records.DisplayMode) {
	if s.store.Len() == 0 {
		fmt.Fprintln(s.out, "No records.")
		return
	}
	if err := s.store.Display(s.out, mode); err != nil {
		s.logger.WithError(err).Error("Failed to display records")
	}
}

func (s *session) add(ctx context.Context) error {
	id, err := s.prompt(ctx, "Enter ID (blank to generate): ")
	if err != nil {
		return err
	}
	name, err := s.prompt(ctx, "Enter Name: ")
	if err != nil {
		return err
	}
	ageText, err := s.prompt(ctx, "Enter Age: ")
	if err != nil {
		return err
	}
	aux, err := s.prompt(ctx, fmt.Sprintf("Enter %s: ", s.auxLabel()))
	if err != nil {
		return err
	}

	rec := records.Record{
		ID:   strings.TrimSpace(id),
		Name: strings.TrimSpace(name),
	}
	if rec.ID == "" {
		rec.ID = s.newID()
		fmt.Fprintf(s.out, "Assigned ID: %s\n", rec.ID)
	}

	if rec.Age, err = records.ParseAge(ageText); err != nil {
		s.report(err)
		return nil
	}
	if err := s.setAux(&rec, aux); err != nil {
		s.report(err)
		return nil
	}

	if err := s.store.Add(ctx, rec); err != nil {
		s.report(err)
		return nil
	}
	fmt.Fprintln(s.out, "Record added successfully.")
	return nil
}

func (s *session) update(ctx context.Context) error {
	id, err := s.prompt(ctx, "Enter ID to update: ")
	if err != nil {
		return err
	}
	name, err := s.prompt(ctx, "Enter New Name (leave blank to keep unchanged): ")
	if err != nil {
		return err
	}
	ageText, err := s.prompt(ctx, "Enter New Age (leave blank to keep unchanged): ")
	if err != nil {
		return err
	}
	aux, err := s.prompt(ctx, fmt.Sprintf("Enter New %s (leave blank to keep unchanged): ", s.auxLabel()))
	if err != nil {
		return err
	}

	patch, err := s.patch(name, ageText, aux)
	if err != nil {
		s.report(err)
		return nil
	}

	if err := s.store.Update(ctx, strings.TrimSpace(id), patch); err != nil {
		s.report(err)
		return nil
	}
	fmt.Fprintln(s.out, "Record updated successfully.")
	return nil
}

func (s *session) delete(ctx context.Context) error {
	id, err := s.prompt(ctx, "Enter ID to delete: ")
	if err != nil {
		return err
	}

	n, err := s.store.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		s.report(err)
		return nil
	}
	if n == 0 {
		fmt.Fprintln(s.out, "Record not found.")
		return nil
	}
	fmt.Fprintln(s.out, "Record deleted successfully.")
	return nil
}

func (s *session) save(ctx context.Context) {
	if s.store.Synced() {
		fmt.Fprintln(s.out, "All changes are already saved.")
		return
	}
	if err := s.store.Save(ctx); err != nil {
		fmt.Fprintf(s.out, "An error occurred while saving data: %v\n", err)
		s.logger.WithError(err).Error("Failed to save records")
		return
	}
	fmt.Fprintln(s.out, "Data saved successfully.")
}

func (s *session) reload(ctx context.Context, path string) {
	err := s.store.LoadFrom(ctx, path)
	if err := Summarize(s.out, s.store, err); err != nil {
		s.logger.WithError(err).Error("Failed to load records")
	}
}

// patch builds an update from the raw answers. Blank answers are left out.
func (s *session) patch(name, ageText, aux string) (records.Patch, error) {
	var p records.Patch
	if name = strings.TrimSpace(name); name != "" {
		p.Name = &name
	}
	if strings.TrimSpace(ageText) != "" {
		age, err := records.ParseAge(ageText)
		if err != nil {
			return p, err
		}
		p.Age = &age
	}
	if aux = strings.TrimSpace(aux); aux != "" {
		if s.currentLayout() == records.LayoutSalary {
			salary, err := records.ParseSalary(aux)
			if err != nil {
				return p, err
			}
			p.Salary = &salary
		} else {
			p.Department = &aux
		}
	}
	return p, nil
}

func (s *session) setAux(r *records.Record, aux string) error {
	aux = strings.TrimSpace(aux)
	if s.currentLayout() != records.LayoutSalary {
		r.Department = aux
		return nil
	}
	if aux == "" {
		return nil
	}
	salary, err := records.ParseSalary(aux)
	if err != nil {
		return err
	}
	r.Salary = &salary
	return nil
}

// layoutReporter is implemented by backends whose layout follows the source.
type layoutReporter interface {
	Layout() records.Layout
}

func (s *session) currentLayout() records.Layout {
	if s.layout != "" {
		return s.layout
	}
	if lr, ok := s.store.Backend().(layoutReporter); ok {
		return lr.Layout()
	}
	return records.LayoutDepartment
}

func (s *session) auxLabel() string {
	if s.currentLayout() == records.LayoutSalary {
		return "Salary"
	}
	return "Department"
}

// report prints a classified error as a user message.
func (s *session) report(err error) {
	var re *records.RecordError
	errors.As(err, &re)

	switch records.ClassOf(err) {
	case records.ErrorClassNotFound:
		fmt.Fprintln(s.out, "Record not found.")
	case records.ErrorClassConflict:
		fmt.Fprintf(s.out, "A record with ID %s already exists.\n", re.RecordID)
	case records.ErrorClassFormat:
		fmt.Fprintf(s.out, "Invalid input: %s\n", re.Message)
	default:
		fmt.Fprintf(s.out, "Error: %v\n", err)
		s.logger.WithError(err).Error("Store operation failed")
	}
}

// prompt writes label and waits for one line of input.
func (s *session) prompt(ctx context.Context, label string) (string, error) {
	fmt.Fprint(s.out, label)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimRight(line, "\r"), nil
	}
}

// readLines delivers lines from r until r ends or done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

// Summarize prints the outcome of a load. Missing sources and skipped rows
// are reported to the user and not returned; any other error is.
func Summarize(w io.Writer, store *records.Store, err error) error {
	switch {
	case err == nil:
	case records.IsNotFound(err):
		fmt.Fprintln(w, "Source not found, starting with no records.")
	case records.IsFormat(err):
		fmt.Fprintf(w, "Some rows could not be read and were skipped:\n%v\n", err)
	default:
		fmt.Fprintf(w, "An error occurred while loading data: %v\n", err)
		return err
	}
	fmt.Fprintf(w, "%d records loaded.\n", store.Len())
	return nil
}
