package stores

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/recman/recman/pkg/records"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func newCSVStore(t *testing.T, cfg CSVConfig) *CSVStore {
	t.Helper()
	store, err := NewCSVStore(cfg)
	if err != nil {
		t.Fatalf("failed to create csv store: %v", err)
	}
	return store
}

func TestNewCSVStoreDefaults(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: filepath.Join("data", "in.csv")})

	if want := filepath.Join("data", DefaultOutputName); store.Output() != want {
		t.Errorf("expected output %s, got %s", want, store.Output())
	}
	if store.cfg.MaxRows != DefaultMaxRows {
		t.Errorf("expected max rows %d, got %d", DefaultMaxRows, store.cfg.MaxRows)
	}
	if store.Layout() != records.LayoutDepartment {
		t.Errorf("expected department layout, got %s", store.Layout())
	}

	if _, err := NewCSVStore(CSVConfig{}); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestCSVLoadDepartmentLayout(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "data.csv", "id,name,age,department\n1,Alice,25,HR\n2,Bob,30,IT\n")

	store := newCSVStore(t, CSVConfig{Input: path})
	recs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	expected := []records.Record{
		{ID: "1", Name: "Alice", Age: 25, Department: "HR"},
		{ID: "2", Name: "Bob", Age: 30, Department: "IT"},
	}
	if len(recs) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(recs))
	}
	for i := range expected {
		if !recs[i].Equal(expected[i]) {
			t.Errorf("record %d: expected %+v, got %+v", i, expected[i], recs[i])
		}
	}
}

func TestCSVLoadSalaryLayoutSynthesizesIDs(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: "unused.csv"})

	recs, err := store.Read(context.Background(), strings.NewReader("name,age,salary\nAlice,25,5000\nBob,30,6100.5\n"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}

	if store.Layout() != records.LayoutSalary {
		t.Errorf("expected salary layout, got %s", store.Layout())
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].ID != "1" || recs[1].ID != "2" {
		t.Errorf("expected row-number ids, got %s and %s", recs[0].ID, recs[1].ID)
	}
	if recs[1].Salary == nil || *recs[1].Salary != 6100.5 {
		t.Errorf("expected salary 6100.5, got %v", recs[1].Salary)
	}
}

func TestCSVLoadMissingFile(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: filepath.Join(t.TempDir(), "missing.csv")})

	recs, err := store.Load(context.Background())
	if !records.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", recs)
	}

	var re *records.RecordError
	if !errors.As(err, &re) || re.Code != records.ErrCodeSourceMissing {
		t.Errorf("expected code %s, got %v", records.ErrCodeSourceMissing, err)
	}
}

func TestCSVLoadSkipsMalformedRows(t *testing.T) {
	data := "id,name,age,department\n1,Alice,25,HR\n2,Bob,thirty,IT\n3,Carol\n4,Dan,40,Ops\n"
	store := newCSVStore(t, CSVConfig{Input: "unused.csv"})

	recs, err := store.Read(context.Background(), strings.NewReader(data))
	if !records.IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 good records, got %d", len(recs))
	}
	if recs[0].ID != "1" || recs[1].ID != "4" {
		t.Errorf("expected records 1 and 4, got %s and %s", recs[0].ID, recs[1].ID)
	}
	if !strings.Contains(err.Error(), "2 malformed rows skipped") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestCSVLoadStrictStopsAtFirstBadRow(t *testing.T) {
	data := "id,name,age,department\n1,Alice,25,HR\n2,Bob,thirty,IT\n3,Carol,35,Ops\n"
	store := newCSVStore(t, CSVConfig{Input: "unused.csv", Strict: true})

	recs, err := store.Read(context.Background(), strings.NewReader(data))
	if !records.IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "1" {
		t.Errorf("expected only the row before the failure, got %+v", recs)
	}

	var re *records.RecordError
	if !errors.As(err, &re) || re.Row != 2 || re.RecordID != "2" {
		t.Errorf("expected error at row 2 for id 2, got %v", err)
	}
}

func TestCSVLoadBadHeader(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: "unused.csv"})

	_, err := store.Read(context.Background(), strings.NewReader("foo,bar\n1,2\n"))
	if !records.IsFormat(err) {
		t.Fatalf("expected format error, got %v", err)
	}

	var re *records.RecordError
	if !errors.As(err, &re) || re.Code != records.ErrCodeBadHeader {
		t.Errorf("expected bad header code, got %v", err)
	}
}

func TestCSVLoadEmptyFile(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: "unused.csv"})

	recs, err := store.Read(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records, got %d", len(recs))
	}
}

func TestCSVLoadMaxRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,name,age,department\n")
	for i := 0; i < 150; i++ {
		b.WriteString("x,Name,20,Dept\n")
	}

	tests := []struct {
		name     string
		maxRows  int
		expected int
	}{
		{"default cap", 0, DefaultMaxRows},
		{"explicit cap", 10, 10},
		{"no cap", -1, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCSVStore(t, CSVConfig{Input: "unused.csv", MaxRows: tt.maxRows})
			recs, err := store.Read(context.Background(), strings.NewReader(b.String()))
			if err != nil {
				t.Fatalf("failed to read: %v", err)
			}
			if len(recs) != tt.expected {
				t.Errorf("expected %d records, got %d", tt.expected, len(recs))
			}
		})
	}
}

func TestCSVLoadHeaderWithBOM(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: "unused.csv"})

	recs, err := store.Read(context.Background(), strings.NewReader("\ufeffid,name,age,department\n1,Alice,25,HR\n"))
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != "1" {
		t.Errorf("expected Alice with id 1, got %+v", recs)
	}
}

func TestCSVSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.csv", "id,name,age,department\n1,Alice,25,HR\n")
	out := filepath.Join(dir, "nested", "out.csv")

	store := newCSVStore(t, CSVConfig{Input: in, Output: out})
	ctx := context.Background()

	recs, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	recs = append(recs, records.Record{ID: "2", Name: "Bob, Jr.", Age: 30, Department: "IT"})

	if err := store.Save(ctx, recs); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	expected := "id,name,age,department\n1,Alice,25,HR\n2,\"Bob, Jr.\",30,IT\n"
	if string(data) != expected {
		t.Errorf("expected output:\n%s\ngot:\n%s", expected, data)
	}

	// The input is untouched
	orig, _ := os.ReadFile(in)
	if string(orig) != "id,name,age,department\n1,Alice,25,HR\n" {
		t.Errorf("input was modified: %s", orig)
	}

	reloaded, err := store.LoadFrom(ctx, out)
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if len(reloaded) != 2 || !reloaded[1].Equal(recs[1]) {
		t.Errorf("expected round trip of %+v, got %+v", recs, reloaded)
	}

	entries, _ := os.ReadDir(filepath.Dir(out))
	if len(entries) != 1 {
		t.Errorf("expected no temporary files left, got %d entries", len(entries))
	}
}

func TestCSVWriteSalaryLayout(t *testing.T) {
	store := newCSVStore(t, CSVConfig{Input: "unused.csv", Layout: records.LayoutSalary})

	var buf bytes.Buffer
	recs := []records.Record{
		{ID: "1", Name: "Alice", Age: 25, Salary: records.FloatPtr(5000)},
		{ID: "2", Name: "Bob", Age: 30},
	}
	if err := store.Write(&buf, recs); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	expected := "id,name,age,salary\n1,Alice,25,5000\n2,Bob,30,\n"
	if buf.String() != expected {
		t.Errorf("expected:\n%s\ngot:\n%s", expected, buf.String())
	}
}

func TestCSVDefaultOutputNeverInput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"data.csv", DefaultOutputName},
		{filepath.Join("dir", "people.csv"), filepath.Join("dir", DefaultOutputName)},
		{filepath.Join("dir", DefaultOutputName), filepath.Join("dir", "output.out.csv")},
	}

	for _, tt := range tests {
		store := newCSVStore(t, CSVConfig{Input: tt.input})
		if store.Output() != tt.want {
			t.Errorf("input %s: expected output %s, got %s", tt.input, tt.want, store.Output())
		}
		if store.Output() == store.Input() {
			t.Errorf("input %s: output must differ from input", tt.input)
		}
	}
}

// roundTrip saves recs through store and loads them back from its output.
func roundTrip(t *testing.T, store *CSVStore, recs []records.Record) []records.Record {
	t.Helper()
	ctx := context.Background()

	if err := store.Save(ctx, recs); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	reloaded, err := store.LoadFrom(ctx, store.Output())
	if err != nil {
		t.Fatalf("failed to reload: %v", err)
	}
	if len(reloaded) != len(recs) {
		t.Fatalf("expected %d records after reload, got %d", len(recs), len(reloaded))
	}
	for i := range recs {
		if !reloaded[i].Equal(recs[i]) {
			t.Errorf("record %d: expected %+v, got %+v", i, recs[i], reloaded[i])
		}
	}
	return reloaded
}

func TestCSVSalaryLayoutBlankSalaryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "data.csv", "name,age,salary\nAlice,30,75000.0\n")
	store := newCSVStore(t, CSVConfig{Input: in})

	recs, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	recs = append(recs, records.Record{ID: "9", Name: "Bob", Age: 40})

	roundTrip(t, store, recs)

	data, _ := os.ReadFile(store.Output())
	if string(data) != "id,name,age,salary\n1,Alice,30,75000\n9,Bob,40,\n" {
		t.Errorf("unexpected output:\n%s", data)
	}
	if store.Layout() != records.LayoutSalary {
		t.Errorf("expected salary layout after reload, got %s", store.Layout())
	}
}

func TestCSVMixedLayoutsKeepBothFields(t *testing.T) {
	dir := t.TempDir()

	t.Run("salary on a department file", func(t *testing.T) {
		in := writeFile(t, dir, "dept.csv", "id,name,age,department\n1,Alice,25,HR\n2,Bob,30,IT\n")
		store := newCSVStore(t, CSVConfig{Input: in, Output: filepath.Join(dir, "dept-out.csv")})

		recs, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		recs[0].Salary = records.FloatPtr(5)

		roundTrip(t, store, recs)

		data, _ := os.ReadFile(store.Output())
		if string(data) != "id,name,age,department,salary\n1,Alice,25,HR,5\n2,Bob,30,IT,\n" {
			t.Errorf("unexpected output:\n%s", data)
		}
		if store.Layout() != records.LayoutDepartment {
			t.Errorf("expected department layout, got %s", store.Layout())
		}
	})

	t.Run("department on a salary file", func(t *testing.T) {
		in := writeFile(t, dir, "salary.csv", "name,age,salary\nAlice,25,5000\n")
		store := newCSVStore(t, CSVConfig{Input: in, Output: filepath.Join(dir, "salary-out.csv")})

		recs, err := store.Load(context.Background())
		if err != nil {
			t.Fatalf("failed to load: %v", err)
		}
		recs = append(recs, records.Record{ID: "2", Name: "Bob", Age: 30, Department: "IT"})

		roundTrip(t, store, recs)

		data, _ := os.ReadFile(store.Output())
		if string(data) != "id,name,age,salary,department\n1,Alice,25,5000,\n2,Bob,30,,IT\n" {
			t.Errorf("unexpected output:\n%s", data)
		}
		if store.Layout() != records.LayoutSalary {
			t.Errorf("expected salary layout, got %s", store.Layout())
		}
	})
}

func TestCSVUpdateOnlyFirstDuplicate(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "dups.csv", "id,name,age,department\n1,Alice,25,HR\n1,Alias,26,IT\n2,Bob,30,IT\n")
	backend := newCSVStore(t, CSVConfig{Input: in})

	store := records.NewStore(backend)
	ctx := context.Background()
	if err := store.Load(ctx); err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if err := store.Update(ctx, "1", records.Patch{Name: records.StringPtr("Alice Cooper")}); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	expected := []records.Record{
		{ID: "1", Name: "Alice Cooper", Age: 25, Department: "HR"},
		{ID: "1", Name: "Alias", Age: 26, Department: "IT"},
		{ID: "2", Name: "Bob", Age: 30, Department: "IT"},
	}
	got := store.Records()
	if len(got) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(got))
	}
	for i := range expected {
		if !got[i].Equal(expected[i]) {
			t.Errorf("record %d: expected %+v, got %+v", i, expected[i], got[i])
		}
	}

	roundTrip(t, backend, got)
}
