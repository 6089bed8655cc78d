package records

import (
	"bytes"
	"testing"
)

func TestFormat(t *testing.T) {
	alice := Record{ID: "1", Name: "Alice", Age: 25, Department: "HR"}
	carol := Record{ID: "3", Name: "Carol", Age: 41, Salary: FloatPtr(5200.5)}

	tests := []struct {
		name     string
		record   Record
		mode     DisplayMode
		expected string
	}{
		{"regular", alice, DisplayRegular, "ID: 1, Name: Alice, Age: 25, Department: HR"},
		{"detailed", alice, DisplayDetailed, "[Detailed View]\nID: 1\nName: Alice\nAge: 25\nDepartment: HR\n"},
		{"simple", alice, DisplaySimple, "1 - Alice"},
		{"json", alice, DisplayJSON, `{"id":"1","name":"Alice","age":25,"department":"HR"}`},
		{"unknown mode", alice, DisplayMode("fancy"), "ID: 1, Name: Alice, Age: 25, Department: HR"},
		{"salary regular", carol, DisplayRegular, "ID: 3, Name: Carol, Age: 41, Salary: 5200.5"},
		{"whole salary", Record{ID: "1", Name: "Alice", Age: 30, Salary: FloatPtr(75000.0)}, DisplayRegular, "ID: 1, Name: Alice, Age: 30, Salary: 75000"},
		{"salary json", carol, DisplayJSON, `{"id":"3","name":"Carol","age":41,"salary":5200.5}`},
		{"empty department", Record{ID: "4", Name: "Dan", Age: 0}, DisplayRegular, "ID: 4, Name: Dan, Age: 0, Department: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.record, tt.mode); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestRender(t *testing.T) {
	recs := []Record{
		{ID: "1", Name: "Alice", Age: 25, Department: "HR"},
		{ID: "2", Name: "Bob", Age: 30, Department: "IT"},
	}

	var buf bytes.Buffer
	if err := Render(&buf, recs, DisplaySimple); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.String() != "1 - Alice\n2 - Bob\n" {
		t.Errorf("unexpected simple output: %q", buf.String())
	}

	buf.Reset()
	if err := Render(&buf, recs[:1], DisplayDetailed); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.String() != "[Detailed View]\nID: 1\nName: Alice\nAge: 25\nDepartment: HR\n" {
		t.Errorf("unexpected detailed output: %q", buf.String())
	}

	buf.Reset()
	if err := Render(&buf, nil, DisplayRegular); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for no records, got %q", buf.String())
	}
}

func TestParseDisplayMode(t *testing.T) {
	tests := []struct {
		input    string
		expected DisplayMode
		wantErr  bool
	}{
		{"", DisplayRegular, false},
		{"regular", DisplayRegular, false},
		{"Detailed", DisplayDetailed, false},
		{" simple ", DisplaySimple, false},
		{"json", DisplayJSON, false},
		{"table", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDisplayMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDisplayMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseDisplayMode(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestPatchApply(t *testing.T) {
	r := Record{ID: "1", Name: "Alice", Age: 25, Department: "HR"}

	if !(Patch{}).Empty() {
		t.Error("expected zero patch to be empty")
	}

	p := Patch{Name: StringPtr("Alicia"), Salary: FloatPtr(10)}
	if p.Empty() {
		t.Error("expected patch to be non-empty")
	}
	p.Apply(&r)

	if r.Name != "Alicia" || r.Age != 25 || r.Department != "HR" {
		t.Errorf("unexpected record after patch: %+v", r)
	}
	if r.Salary == nil || *r.Salary != 10 {
		t.Errorf("expected salary 10, got %v", r.Salary)
	}

	// The record does not alias the patch
	*p.Salary = 20
	if *r.Salary != 10 {
		t.Errorf("record salary aliased the patch: %v", *r.Salary)
	}
}

func TestParseAgeAndSalary(t *testing.T) {
	if age, err := ParseAge(" 42 "); err != nil || age != 42 {
		t.Errorf("ParseAge: got %d, %v", age, err)
	}
	if _, err := ParseAge("forty"); !IsFormat(err) {
		t.Errorf("expected format error, got %v", err)
	}
	if s, err := ParseSalary("1234.5"); err != nil || s != 1234.5 {
		t.Errorf("ParseSalary: got %v, %v", s, err)
	}
	if _, err := ParseSalary(""); !IsFormat(err) {
		t.Errorf("expected format error, got %v", err)
	}
	if got := FormatSalary(5000); got != "5000" {
		t.Errorf("FormatSalary(5000) = %q", got)
	}
}

func TestParseLayout(t *testing.T) {
	if l, err := ParseLayout(""); err != nil || l != LayoutDepartment {
		t.Errorf("expected default layout, got %q, %v", l, err)
	}
	if l, err := ParseLayout("Salary"); err != nil || l != LayoutSalary {
		t.Errorf("expected salary layout, got %q, %v", l, err)
	}
	if _, err := ParseLayout("wide"); err == nil {
		t.Error("expected error for unknown layout")
	}
}
