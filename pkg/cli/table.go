package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
)

// Table wraps text/tabwriter with consistent column-aligned output.
// Headers and a dash divider are written lazily on first Row() or Flush(),
// so empty tables produce no output.
type Table struct {
	w       *tabwriter.Writer
	headers []string
	prefix  string
	written bool
	rows    int
}

// NewTable creates a table writing to w with the given column headers.
func NewTable(w io.Writer, headers ...string) *Table {
	return &Table{
		w:       tabwriter.NewWriter(w, 0, 0, 2, ' ', 0),
		headers: headers,
	}
}

// WithPrefix sets a string prepended to each line (headers, divider, rows).
func (t *Table) WithPrefix(prefix string) *Table {
	t.prefix = prefix
	return t
}

// Row writes a tab-separated row. Empty values are shown as "-".
func (t *Table) Row(values ...string) {
	t.ensureHeaders()
	cells := make([]string, len(values))
	for i, v := range values {
		if v == "" {
			v = "-"
		}
		cells[i] = v
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(cells, "\t"))
	t.rows++
}

// Rows returns the number of rows written.
func (t *Table) Rows() int {
	return t.rows
}

// Flush writes any buffered output. If no rows were written, nothing is printed.
func (t *Table) Flush() error {
	if !t.written {
		return nil
	}
	return t.w.Flush()
}

func (t *Table) ensureHeaders() {
	if t.written {
		return
	}
	t.written = true
	fmt.Fprintln(t.w, t.prefix+strings.Join(t.headers, "\t"))
	dividers := make([]string, len(t.headers))
	for i, h := range t.headers {
		dividers[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(t.w, t.prefix+strings.Join(dividers, "\t"))
}

// FieldList renders fields as sorted "name=value" pairs, leaving out the
// names in skip.
func FieldList(fields map[string]string, skip ...string) string {
	names := make([]string, 0, len(fields))
next:
	for name := range fields {
		for _, s := range skip {
			if name == s {
				continue next
			}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, name := range names {
		pairs[i] = name + "=" + fields[name]
	}
	return strings.Join(pairs, " ")
}
