// Package records implements the record manager's in-memory store: an ordered
// collection of uniquely keyed records that is loaded from a backend, mutated
// with add, update and delete, rendered for display and persisted back.
package records

import (
	"fmt"
	"strconv"
	"strings"
)

// Layout names the column set of a record source.
type Layout string

const (
	// LayoutDepartment is the id,name,age,department column set.
	LayoutDepartment Layout = "department"

	// LayoutSalary is the name,age,salary column set, optionally with id.
	LayoutSalary Layout = "salary"
)

// Columns returns the header row written for the layout.
func (l Layout) Columns() []string {
	if l == LayoutSalary {
		return []string{"id", "name", "age", "salary"}
	}
	return []string{"id", "name", "age", "department"}
}

// ParseLayout converts a layout name, defaulting to LayoutDepartment.
func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(LayoutDepartment):
		return LayoutDepartment, nil
	case string(LayoutSalary):
		return LayoutSalary, nil
	default:
		return "", fmt.Errorf("unknown layout: %q", s)
	}
}

// Record is one entity with a unique id and a small set of descriptive fields.
// Salary is set only for records of the salary layout.
type Record struct {
	ID         string   `json:"id" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Age        int      `json:"age" yaml:"age"`
	Department string   `json:"department,omitempty" yaml:"department,omitempty"`
	Salary     *float64 `json:"salary,omitempty" yaml:"salary,omitempty"`
}

// Layout reports which column set the record belongs to.
func (r Record) Layout() Layout {
	if r.Salary != nil {
		return LayoutSalary
	}
	return LayoutDepartment
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	c := r
	if r.Salary != nil {
		s := *r.Salary
		c.Salary = &s
	}
	return c
}

// Equal reports whether two records carry the same field values.
func (r Record) Equal(o Record) bool {
	if r.ID != o.ID || r.Name != o.Name || r.Age != o.Age || r.Department != o.Department {
		return false
	}
	if (r.Salary == nil) != (o.Salary == nil) {
		return false
	}
	return r.Salary == nil || *r.Salary == *o.Salary
}

// Patch carries the fields of a partial update. Nil fields are left unchanged.
type Patch struct {
	Name       *string
	Age        *int
	Department *string
	Salary     *float64
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Age == nil && p.Department == nil && p.Salary == nil
}

// Apply replaces the supplied fields of r.
func (p Patch) Apply(r *Record) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Age != nil {
		r.Age = *p.Age
	}
	if p.Department != nil {
		r.Department = *p.Department
	}
	if p.Salary != nil {
		s := *p.Salary
		r.Salary = &s
	}
}

// ParseAge coerces a text field to an age.
func ParseAge(s string) (int, error) {
	age, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, NewFormatError(fmt.Sprintf("invalid age %q", s), err)
	}
	return age, nil
}

// ParseSalary coerces a text field to a salary.
func ParseSalary(s string) (float64, error) {
	salary, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, NewFormatError(fmt.Sprintf("invalid salary %q", s), err)
	}
	return salary, nil
}

// FormatSalary renders a salary the way it is written to sources.
func FormatSalary(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
