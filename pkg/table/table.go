// Package table provides the in-memory tabular model shared by every stage of
// the pipeline: attachments, worksheet snapshots and computed results.
//
// A Row maps column names to string values. A column missing from a Row is a
// null cell, which is different from a present empty string. Values are never
// interpreted as numbers, so "007" stays "007".
package table

import (
	"slices"
	"strings"
)

// Row is a single record keyed by column name. Absent keys are null.
type Row map[string]string

// Get returns the value of column and whether it is non-null.
func (r Row) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// IsNull reports whether column holds no value.
func (r Row) IsNull(column string) bool {
	_, ok := r[column]
	return !ok
}

// Clone returns a copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is an ordered list of columns and rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// New creates an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// FromRecords builds a table from a header and positional records, as read
// from a worksheet or a CSV file. Cells past the end of a short record are
// null; cells beyond the header are ignored. Empty strings are kept as-is;
// callers decide which markers mean null.
func FromRecords(header []string, records [][]string) *Table {
	t := New(header...)
	for _, rec := range records {
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Append adds rows to the table.
func (t *Table) Append(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether column is part of the table's column list.
func (t *Table) HasColumn(column string) bool {
	return slices.Contains(t.Columns, column)
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{Columns: slices.Clone(t.Columns), Rows: make([]Row, len(t.Rows))}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Values renders the rows positionally in column order, with nulls as "".
// This is the shape written to a worksheet.
func (t *Table) Values() [][]string {
	out := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Columns))
		for j, col := range t.Columns {
			rec[j] = r[col]
		}
		out[i] = rec
	}
	return out
}

// Key returns a string identifying the row's full content over columns,
// distinguishing null from empty. Two rows are exact duplicates when their
// keys are equal.
func Key(r Row, columns []string) string {
	var b strings.Builder
	for _, col := range columns {
		v, ok := r[col]
		if !ok {
			b.WriteByte(0x00)
		} else {
			b.WriteByte(0x01)
			b.WriteString(v)
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}
