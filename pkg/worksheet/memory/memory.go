// Package memory provides an in-memory worksheet.Document. It backs dry runs
// of the offline reconcile command and stands in for a spreadsheet in tests,
// including failure injection per tab and operation.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

// Operation names a Worksheet method for failure injection.
type Operation string

// Worksheet operations.
const (
	OpRead    Operation = "read"
	OpHeader  Operation = "header"
	OpReplace Operation = "replace"
	OpAppend  Operation = "append"
)

// Document is a concurrency-safe in-memory spreadsheet.
type Document struct {
	mu       sync.Mutex
	tabs     map[string][][]string
	failures map[string]map[Operation]error
	calls    []string
}

var _ worksheet.Document = (*Document)(nil)

// New creates an empty document.
func New() *Document {
	return &Document{
		tabs:     make(map[string][][]string),
		failures: make(map[string]map[Operation]error),
	}
}

// AddSheet creates or overwrites a tab with the given cell values.
func (d *Document) AddSheet(title string, values [][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs[title] = cloneGrid(values)
}

// Values returns a copy of a tab's cells, or nil if the tab does not exist.
func (d *Document) Values(title string) [][]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneGrid(d.tabs[title])
}

// Fail makes every later call of op on title return err. A nil err clears it.
func (d *Document) Fail(title string, op Operation, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failures[title] == nil {
		d.failures[title] = make(map[Operation]error)
	}
	if err == nil {
		delete(d.failures[title], op)
		return
	}
	d.failures[title][op] = err
}

// Calls returns the successful write operations in order, as "op:title".
func (d *Document) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

// Worksheet implements worksheet.Document.
func (d *Document) Worksheet(_ context.Context, title string) (worksheet.Worksheet, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.tabs[title]; !ok {
		return nil, errors.NewStructuralError("worksheet", title, "not found")
	}
	return &sheet{doc: d, title: title}, nil
}

type sheet struct {
	doc   *Document
	title string
}

func (s *sheet) Title() string { return s.title }

func (s *sheet) Read(ctx context.Context) (*table.Table, error) {
	values, err := s.snapshot(ctx, OpRead)
	if err != nil {
		return nil, err
	}
	return worksheet.FromValues(values), nil
}

func (s *sheet) Header(ctx context.Context) ([]string, error) {
	values, err := s.snapshot(ctx, OpHeader)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

func (s *sheet) Replace(ctx context.Context, t *table.Table) error {
	return s.write(ctx, OpReplace, func(_ [][]string) [][]string {
		return worksheet.ToValues(t)
	})
}

func (s *sheet) Append(ctx context.Context, rows [][]string) error {
	return s.write(ctx, OpAppend, func(current [][]string) [][]string {
		return append(current, cloneGrid(rows)...)
	})
}

func (s *sheet) snapshot(ctx context.Context, op Operation) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := s.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures[s.title][op]; err != nil {
		return nil, err
	}
	values, ok := d.tabs[s.title]
	if !ok {
		return nil, errors.NewStructuralError("worksheet", s.title, "not found")
	}
	return cloneGrid(values), nil
}

func (s *sheet) write(ctx context.Context, op Operation, update func([][]string) [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := s.doc
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failures[s.title][op]; err != nil {
		return err
	}
	d.tabs[s.title] = update(d.tabs[s.title])
	d.calls = append(d.calls, string(op)+":"+s.title)
	return nil
}

func cloneGrid(values [][]string) [][]string {
	if values == nil {
		return nil
	}
	out := make([][]string, len(values))
	for i, rec := range values {
		out[i] = slices.Clone(rec)
	}
	return out
}
