package records

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DisplayMode selects how records are rendered.
type DisplayMode string

const (
	// DisplayRegular renders all fields labeled on one line.
	DisplayRegular DisplayMode = "regular"

	// DisplayDetailed renders a multi-line labeled block.
	DisplayDetailed DisplayMode = "detailed"

	// DisplaySimple renders id and name only.
	DisplaySimple DisplayMode = "simple"

	// DisplayJSON renders one JSON object per line.
	DisplayJSON DisplayMode = "json"
)

// ParseDisplayMode converts a mode name. An empty name is DisplayRegular.
func ParseDisplayMode(s string) (DisplayMode, error) {
	switch DisplayMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DisplayRegular:
		return DisplayRegular, nil
	case DisplayDetailed:
		return DisplayDetailed, nil
	case DisplaySimple:
		return DisplaySimple, nil
	case DisplayJSON:
		return DisplayJSON, nil
	default:
		return "", fmt.Errorf("unknown display mode: %q", s)
	}
}

// Format renders a single record. Unknown modes fall back to DisplayRegular.
func Format(r Record, mode DisplayMode) string {
	switch mode {
	case DisplaySimple:
		return fmt.Sprintf("%s - %s", r.ID, r.Name)
	case DisplayDetailed:
		var b strings.Builder
		b.WriteString("[Detailed View]\n")
		for _, f := range fields(r) {
			fmt.Fprintf(&b, "%s: %s\n", f[0], f[1])
		}
		return b.String()
	case DisplayJSON:
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Sprintf(`{"error":%q}`, err.Error())
		}
		return string(data)
	default:
		parts := make([]string, 0, 4)
		for _, f := range fields(r) {
			parts = append(parts, f[0]+": "+f[1])
		}
		return strings.Join(parts, ", ")
	}
}

// fields lists label/value pairs in display order.
func fields(r Record) [][2]string {
	out := [][2]string{
		{"ID", r.ID},
		{"Name", r.Name},
		{"Age", fmt.Sprint(r.Age)},
	}
	if r.Salary != nil {
		return append(out, [2]string{"Salary", FormatSalary(*r.Salary)})
	}
	return append(out, [2]string{"Department", r.Department})
}

// Render writes every record to w in order.
func Render(w io.Writer, recs []Record, mode DisplayMode) error {
	for _, r := range recs {
		line := Format(r, mode)
		if !strings.HasSuffix(line, "\n") {
			line += "\n"
		}
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
