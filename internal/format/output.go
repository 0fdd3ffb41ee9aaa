package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/x/ansi"
)

// maxCell bounds table cells; nested values are shown as compact JSON.
const maxCell = 48

// Tabular values choose their own table layout.
type Tabular interface {
	Header() []string
	Rows() [][]string
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - table
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "table":
		return WriteTable(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes one JSON document followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteTable renders v as a bordered table. Lists of objects get one column per field with
// "id" first; a single object is shown as field/value rows.
func WriteTable(w io.Writer, v any) error {
	header, rows, err := tabulate(v)
	if err != nil {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Faint(true)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		}).
		Headers(header...).
		Rows(rows...)
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func tabulate(v any) ([]string, [][]string, error) {
	if t, ok := v.(Tabular); ok {
		return t.Header(), t.Rows(), nil
	}
	// Go through JSON so field names follow the json tags.
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	var x any
	if err := json.Unmarshal(b, &x); err != nil {
		return nil, nil, err
	}

	switch x := x.(type) {
	case []any:
		objs := make([]map[string]any, 0, len(x))
		keys := map[string]struct{}{}
		for _, el := range x {
			m, ok := el.(map[string]any)
			if !ok {
				m = map[string]any{"value": el}
			}
			for k := range m {
				keys[k] = struct{}{}
			}
			objs = append(objs, m)
		}
		header := orderedKeys(keys)
		rows := make([][]string, 0, len(objs))
		for _, m := range objs {
			row := make([]string, len(header))
			for i, k := range header {
				row[i] = cell(m[k])
			}
			rows = append(rows, row)
		}
		return header, rows, nil
	case map[string]any:
		keys := map[string]struct{}{}
		for k := range x {
			keys[k] = struct{}{}
		}
		var rows [][]string
		for _, k := range orderedKeys(keys) {
			rows = append(rows, []string{k, cell(x[k])})
		}
		return []string{"field", "value"}, rows, nil
	default:
		return []string{"value"}, [][]string{{cell(x)}}, nil
	}
}

func orderedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if rank(out[i]) != rank(out[j]) {
			return rank(out[i]) < rank(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

func rank(k string) int {
	switch k {
	case "id":
		return 0
	case "name", "title":
		return 1
	case "status":
		return 2
	default:
		return 3
	}
}

func cell(v any) string {
	var s string
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		s = v
	case float64, bool:
		s = fmt.Sprint(v)
	default:
		b, _ := json.Marshal(v)
		s = string(b)
	}
	s = strings.Join(strings.Fields(s), " ")
	return ansi.Truncate(s, maxCell, "…")
}
