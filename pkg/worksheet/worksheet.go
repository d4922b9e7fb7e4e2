// Package worksheet defines the spreadsheet side of the pipeline: a document
// holding named tabs, each read as a table keyed by its header row.
//
// Implementations treat empty cells as null. Replace must leave the tab either
// fully old or fully new; Append must never touch existing rows.
package worksheet

import (
	"context"

	"github.com/agentstation/pubmap/pkg/table"
)

// Document is a spreadsheet file holding named tabs.
type Document interface {
	// Worksheet opens the tab with the given title. A missing tab is a StructuralError.
	Worksheet(ctx context.Context, title string) (Worksheet, error)
}

// Worksheet is a single tab.
type Worksheet interface {
	// Title returns the tab name.
	Title() string

	// Read returns all records keyed by the header row.
	Read(ctx context.Context) (*table.Table, error)

	// Header returns the first row as written, untrimmed.
	Header(ctx context.Context) ([]string, error)

	// Replace overwrites the tab with t's header and rows in one operation.
	Replace(ctx context.Context, t *table.Table) error

	// Append adds rows after the last row. Existing rows are left as they are.
	Append(ctx context.Context, rows [][]string) error
}

// FromValues interprets a grid of cell values, first row as header. Empty
// cells are null. Rows that are empty in every cell are skipped.
func FromValues(values [][]string) *table.Table {
	if len(values) == 0 {
		return table.New()
	}
	header := values[0]
	t := table.New(header...)
	for _, rec := range values[1:] {
		row := make(table.Row, len(header))
		for i, col := range header {
			if i < len(rec) && rec[i] != "" {
				row[col] = rec[i]
			}
		}
		if len(row) == 0 {
			continue
		}
		t.Append(row)
	}
	return t
}

// ToValues renders t as a grid, header row first, nulls as "".
func ToValues(t *table.Table) [][]string {
	values := make([][]string, 0, t.Len()+1)
	values = append(values, append([]string(nil), t.Columns...))
	return append(values, t.Values()...)
}

// Pad extends values to at least rows x cols with empty cells. Writing the
// padded grid over a tab blanks whatever the previous content left beyond
// the new extent, so a single write replaces the tab.
func Pad(values [][]string, rows, cols int) [][]string {
	for _, rec := range values {
		if len(rec) > cols {
			cols = len(rec)
		}
	}
	out := make([][]string, max(rows, len(values)))
	for i := range out {
		rec := make([]string, cols)
		if i < len(values) {
			copy(rec, values[i])
		}
		out[i] = rec
	}
	return out
}
