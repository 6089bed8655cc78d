package stores

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kjk/common/atomicfile"

	"github.com/recman/recman/pkg/records"
)

// DefaultOutputName is the file Save writes next to the input when no
// output is configured.
const DefaultOutputName = "output.csv"

// DefaultMaxRows is the number of data rows a CSV load ingests by default.
const DefaultMaxRows = 100

// CSVConfig holds CSV store configuration.
type CSVConfig struct {
	// Input is the file records are loaded from.
	Input string

	// Output is the file Save rewrites. It defaults to DefaultOutputName in
	// the input's directory, and is never the input itself unless set so.
	Output string

	// MaxRows caps the data rows read per load. Zero means DefaultMaxRows,
	// a negative value means no cap.
	MaxRows int

	// Strict stops a load at the first malformed row instead of skipping it.
	Strict bool

	// Layout is the column set written when nothing was loaded yet.
	Layout records.Layout
}

// CSVStore is a bulk-rewrite backend over delimited text files with a header
// row. It writes back in the layout of the last file it loaded.
type CSVStore struct {
	cfg    CSVConfig
	layout records.Layout
}

var (
	_ records.Backend    = (*CSVStore)(nil)
	_ records.BulkSaver  = (*CSVStore)(nil)
	_ records.PathLoader = (*CSVStore)(nil)
)

// NewCSVStore creates a new CSV store.
func NewCSVStore(cfg CSVConfig) (*CSVStore, error) {
	if cfg.Input == "" {
		return nil, fmt.Errorf("csv input path is required")
	}
	if cfg.Output == "" {
		cfg.Output = defaultOutput(cfg.Input)
	}
	if cfg.MaxRows == 0 {
		cfg.MaxRows = DefaultMaxRows
	}
	if cfg.Layout == "" {
		cfg.Layout = records.LayoutDepartment
	}

	return &CSVStore{
		cfg:    cfg,
		layout: cfg.Layout,
	}, nil
}

// defaultOutput picks a sibling of input that is not input itself.
func defaultOutput(input string) string {
	dir, name := filepath.Split(input)
	if name == DefaultOutputName {
		return filepath.Join(dir, strings.TrimSuffix(name, ".csv")+".out.csv")
	}
	return filepath.Join(dir, DefaultOutputName)
}

// Name returns the backend name.
func (c *CSVStore) Name() string {
	return "csv"
}

// Input returns the configured source path.
func (c *CSVStore) Input() string {
	return c.cfg.Input
}

// Output returns the configured destination path.
func (c *CSVStore) Output() string {
	return c.cfg.Output
}

// Layout returns the layout Save will write.
func (c *CSVStore) Layout() records.Layout {
	return c.layout
}

// Load reads the configured input file.
func (c *CSVStore) Load(ctx context.Context) ([]records.Record, error) {
	return c.LoadFrom(ctx, c.cfg.Input)
}

// LoadFrom reads records from path. A missing file yields no records and a
// not-found error.
func (c *CSVStore) LoadFrom(ctx context.Context, path string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []records.Record{}, records.NewNotFoundError(
				fmt.Sprintf("source file %s not found", path), err).
				WithCode(records.ErrCodeSourceMissing)
		}
		return nil, records.NewUnknownError("failed to open source file", err)
	}
	defer f.Close()

	return c.Read(ctx, f)
}

// Read parses CSV data from r. The first row must be a header naming at
// least the name and age columns.
func (c *CSVStore) Read(ctx context.Context, r io.Reader) ([]records.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return []records.Record{}, nil
	}
	if err != nil {
		return []records.Record{}, records.NewFormatError("failed to read header", err).
			WithCode(records.ErrCodeBadHeader)
	}

	cols, layout, err := parseHeader(header)
	if err != nil {
		return []records.Record{}, err
	}
	c.layout = layout

	recs := []records.Record{}
	var rowErrs []error
	for row := 1; c.cfg.MaxRows < 0 || row <= c.cfg.MaxRows; row++ {
		if err := ctx.Err(); err != nil {
			return recs, err
		}

		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err == nil {
			var rec records.Record
			rec, err = cols.parse(fields, row)
			if err == nil {
				recs = append(recs, rec)
				continue
			}
		} else {
			err = records.NewFormatError("malformed csv row", err).WithRow(row)
		}

		if c.cfg.Strict {
			return recs, err
		}
		rowErrs = append(rowErrs, err)
	}

	if len(rowErrs) > 0 {
		return recs, records.NewFormatError(
			fmt.Sprintf("%d malformed rows skipped", len(rowErrs)),
			errors.Join(rowErrs...))
	}
	return recs, nil
}

// Save rewrites the output file with recs. The file is replaced atomically.
func (c *CSVStore) Save(_ context.Context, recs []records.Record) error {
	if err := os.MkdirAll(filepath.Dir(c.cfg.Output), 0755); err != nil {
		return records.NewUnknownError("failed to create output directory", err)
	}

	f, err := atomicfile.New(c.cfg.Output)
	if err != nil {
		return records.NewUnknownError("failed to create output file", err)
	}
	defer f.RemoveIfNotClosed()

	if err := c.Write(f, recs); err != nil {
		return records.NewUnknownError("failed to write records", err)
	}

	if err := f.Close(); err != nil {
		return records.NewUnknownError("failed to replace output file", err)
	}

	// The temp file was created 0600
	_ = os.Chmod(c.cfg.Output, 0644)
	return nil
}

// Write encodes recs as CSV with a header row in the store's layout. When a
// record carries the other layout's field, that column is appended so the
// value survives a reload.
func (c *CSVStore) Write(w io.Writer, recs []records.Record) error {
	header := c.layout.Columns()
	extra := ""
	for _, r := range recs {
		if c.layout == records.LayoutSalary && r.Department != "" {
			extra = "department"
			break
		}
		if c.layout != records.LayoutSalary && r.Salary != nil {
			extra = "salary"
			break
		}
	}
	if extra != "" {
		header = append(header, extra)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range recs {
		row := []string{r.ID, r.Name, strconv.Itoa(r.Age)}
		for _, col := range header[3:] {
			if col == "salary" {
				salary := ""
				if r.Salary != nil {
					salary = records.FormatSalary(*r.Salary)
				}
				row = append(row, salary)
			} else {
				row = append(row, r.Department)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Close is a no-op; the CSV store holds no open files between operations.
func (c *CSVStore) Close() error {
	return nil
}

// columns maps field names to their index in a row; -1 means absent.
type columns struct {
	id, name, age, department, salary int
}

func parseHeader(header []string) (columns, records.Layout, error) {
	cols := columns{id: -1, name: -1, age: -1, department: -1, salary: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "id":
			cols.id = i
		case "name":
			cols.name = i
		case "age":
			cols.age = i
		case "department":
			cols.department = i
		case "salary":
			cols.salary = i
		}
	}

	if cols.name < 0 || cols.age < 0 {
		return cols, "", records.NewFormatError(
			fmt.Sprintf("header %q must name the name and age columns", strings.Join(header, ",")), nil).
			WithCode(records.ErrCodeBadHeader)
	}

	// With both columns the one written first decides the layout
	layout := records.LayoutDepartment
	if cols.salary >= 0 && (cols.department < 0 || cols.salary < cols.department) {
		layout = records.LayoutSalary
	}
	return cols, layout, nil
}

// parse coerces one data row. Rows without an id column get their 1-based
// row number as id.
func (c columns) parse(fields []string, row int) (records.Record, error) {
	get := func(i int) (string, error) {
		if i < 0 {
			return "", nil
		}
		if i >= len(fields) {
			return "", records.NewFormatError(
				fmt.Sprintf("row has %d fields, expected at least %d", len(fields), i+1), nil).
				WithRow(row)
		}
		return strings.TrimSpace(fields[i]), nil
	}

	var rec records.Record
	var err error

	if c.id >= 0 {
		if rec.ID, err = get(c.id); err != nil {
			return rec, err
		}
	} else {
		rec.ID = strconv.Itoa(row)
	}

	if rec.Name, err = get(c.name); err != nil {
		return rec, err
	}

	ageText, err := get(c.age)
	if err != nil {
		return rec, err
	}
	if rec.Age, err = records.ParseAge(ageText); err != nil {
		return rec, withRow(err, rec.ID, row)
	}

	if rec.Department, err = get(c.department); err != nil {
		return rec, err
	}

	if c.salary >= 0 {
		salaryText, err := get(c.salary)
		if err != nil {
			return rec, err
		}
		if salaryText == "" {
			return rec, nil
		}
		salary, err := records.ParseSalary(salaryText)
		if err != nil {
			return rec, withRow(err, rec.ID, row)
		}
		rec.Salary = &salary
	}

	return rec, nil
}

func withRow(err error, id string, row int) error {
	var re *records.RecordError
	if errors.As(err, &re) {
		return re.WithRecord(id).WithRow(row)
	}
	return err
}
