package shell

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/recman/recman/pkg/records"
	"github.com/recman/recman/pkg/stores"
)

const aliceBob = "id,name,age,department\n1,Alice,25,HR\n2,Bob,30,IT\n"

// setupCSV creates a CSV-backed store over a data file in a temp dir.
func setupCSV(t *testing.T, data string) (*records.Store, string) {
	t.Helper()

	dir := t.TempDir()
	input := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(input, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write data: %v", err)
	}

	backend, err := stores.NewCSVStore(stores.CSVConfig{
		Input:  input,
		Output: filepath.Join(dir, "output.csv"),
	})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	store := records.NewStore(backend)
	t.Cleanup(func() { _ = store.Close() })
	return store, dir
}

func run(t *testing.T, store *records.Store, input string, opts ...Option) string {
	t.Helper()

	var out bytes.Buffer
	sh := New(store, strings.NewReader(input), &out, opts...)
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	return out.String()
}

func TestShellDisplayModes(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	out := run(t, store, "1\n2\n3\n0\n")

	expected := []string{
		"2 records loaded.",
		"ID: 1, Name: Alice, Age: 25, Department: HR",
		"[Detailed View]\nID: 2\nName: Bob\nAge: 30\nDepartment: IT\n",
		"1 - Alice\n2 - Bob\n",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestShellMutationsAndSave(t *testing.T) {
	store, dir := setupCSV(t, aliceBob)

	input := strings.Join([]string{
		"4", "3", "Carol", "35", "Ops", // add
		"4", "1", "X", "1", "Y", // duplicate id
		"5", "2", "", "31", "", // update age only
		"5", "9", "Z", "", "", // unknown id
		"6", "1", // delete
		"6", "1", // delete again
		"7", // save
		"0",
	}, "\n") + "\n"

	out := run(t, store, input)

	for _, want := range []string{
		"Record added successfully.",
		"A record with ID 1 already exists.",
		"Record updated successfully.",
		"Record not found.",
		"Record deleted successfully.",
		"Data saved successfully.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "output.csv"))
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	expected := "id,name,age,department\n2,Bob,31,IT\n3,Carol,35,Ops\n"
	if string(data) != expected {
		t.Errorf("expected saved file:\n%s\ngot:\n%s", expected, data)
	}
}

func TestShellAddGeneratesBlankID(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	out := run(t, store, "4\n\nDan\n40\nOps\n0\n",
		WithIDGenerator(func() string { return "generated-id" }))

	if !strings.Contains(out, "Assigned ID: generated-id") {
		t.Errorf("expected generated id message\n%s", out)
	}
	r, ok := store.Get("generated-id")
	if !ok || r.Name != "Dan" {
		t.Errorf("expected Dan under generated id, got %+v", r)
	}
}

func TestShellRejectsBadAge(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	out := run(t, store, "4\n3\nCarol\nold\nOps\n5\n1\n\nyoung\n\n0\n")

	if strings.Count(out, "Invalid input:") != 2 {
		t.Errorf("expected two invalid input messages\n%s", out)
	}
	if store.Len() != 2 {
		t.Errorf("expected no record added, got %d records", store.Len())
	}
	r, _ := store.Get("1")
	if r.Age != 25 {
		t.Errorf("expected age unchanged, got %d", r.Age)
	}
}

func TestShellSalaryLayout(t *testing.T) {
	store, _ := setupCSV(t, "name,age,salary\nAlice,25,5000\n")

	// The layout follows the loaded file
	out := run(t, store, "4\n7\nBob\n30\n6100.5\n5\n1\n\n\n5500\n1\n0\n")

	for _, want := range []string{
		"Enter Salary: ",
		"ID: 1, Name: Alice, Age: 25, Salary: 5500",
		"ID: 7, Name: Bob, Age: 30, Salary: 6100.5",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q\n%s", want, out)
		}
	}
}

func TestShellReloadFromOtherFile(t *testing.T) {
	store, dir := setupCSV(t, aliceBob)
	other := filepath.Join(dir, "other.csv")
	if err := os.WriteFile(other, []byte("id,name,age,department\n9,Zed,50,Ops\n"), 0644); err != nil {
		t.Fatalf("failed to write other file: %v", err)
	}

	out := run(t, store, "8\n"+other+"\n3\n8\n"+filepath.Join(dir, "missing.csv")+"\n3\n0\n")

	if !strings.Contains(out, "1 records loaded.") || !strings.Contains(out, "9 - Zed") {
		t.Errorf("expected reload from other file\n%s", out)
	}
	if !strings.Contains(out, "Source not found, starting with no records.") {
		t.Errorf("expected missing source message\n%s", out)
	}
	if !strings.Contains(out, "No records.") {
		t.Errorf("expected empty display after missing reload\n%s", out)
	}
}

func TestShellInvalidChoice(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	out := run(t, store, "42\n0\n")
	if !strings.Contains(out, "Invalid choice. Please try again.") {
		t.Errorf("expected invalid choice message\n%s", out)
	}
}

func TestShellEndsOnEOF(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	// No exit option: input just ends
	out := run(t, store, "1\n")
	if !strings.Contains(out, "ID: 1, Name: Alice") {
		t.Errorf("expected records before EOF\n%s", out)
	}
}

func TestShellEndsOnCancel(t *testing.T) {
	store, _ := setupCSV(t, aliceBob)

	pr, pw := io.Pipe()
	defer pw.Close()

	var out bytes.Buffer
	sh := New(store, pr, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sh.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not stop on cancel")
	}

	if !strings.Contains(out.String(), "Interrupted.") {
		t.Errorf("expected interrupt message\n%s", out.String())
	}
}

func TestShellSyncedSave(t *testing.T) {
	backend, err := stores.OpenSQLiteStore(context.Background(), stores.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	store := records.NewStore(backend)
	defer store.Close()

	out := run(t, store, "4\n1\nAlice\n25\nHR\n7\n0\n")

	if !strings.Contains(out, "0 records loaded.") {
		t.Errorf("expected empty initial load\n%s", out)
	}
	if !strings.Contains(out, "All changes are already saved.") {
		t.Errorf("expected synced save message\n%s", out)
	}

	recs, err := backend.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(recs) != 1 || recs[0].Name != "Alice" {
		t.Errorf("expected Alice in the database, got %+v", recs)
	}
}
