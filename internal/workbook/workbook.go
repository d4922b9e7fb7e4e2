// Package workbook implements worksheet.Document over a local .xlsx file, for
// running the pipeline without a Google account. Every write saves the whole
// workbook to a temporary file and renames it over the original, so a failed
// write leaves the previous file intact.
package workbook

import (
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/pubmap/pkg/constants"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

// Document is an .xlsx file on disk.
type Document struct {
	path string
	mu   sync.Mutex
}

var _ worksheet.Document = (*Document)(nil)

// Open returns a document for the workbook at path. The file must exist.
func Open(path string) (*Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	return &Document{path: path}, nil
}

// Create writes a new workbook with the given tabs, each holding a header row.
// Tabs are ordered by title.
func Create(path string, tabs map[string][]string) (*Document, error) {
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for _, title := range slices.Sorted(maps.Keys(tabs)) {
		header := tabs[title]
		if first {
			if err := f.SetSheetName("Sheet1", title); err != nil {
				return nil, errors.WrapIO("create", path, err)
			}
			first = false
		} else if _, err := f.NewSheet(title); err != nil {
			return nil, errors.WrapIO("create", path, err)
		}
		if err := writeRows(f, title, [][]string{header}, 1); err != nil {
			return nil, errors.WrapIO("create", path, err)
		}
	}

	d := &Document{path: path}
	if err := d.save(f); err != nil {
		return nil, err
	}
	return d, nil
}

// Path returns the workbook file path.
func (d *Document) Path() string {
	return d.path
}

// Worksheet opens the tab called title.
func (d *Document) Worksheet(ctx context.Context, title string) (worksheet.Worksheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := d.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(title); err != nil || idx < 0 {
		return nil, errors.NewStructuralError("worksheet", title, "tab not found in "+filepath.Base(d.path))
	}
	return &Worksheet{doc: d, title: title}, nil
}

func (d *Document) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(d.path)
	if err != nil {
		return nil, errors.NewParseError("xlsx", d.path, "cannot open workbook", err)
	}
	return f, nil
}

// save writes f next to the document and renames it into place.
func (d *Document) save(f *excelize.File) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".pubmap-*.xlsx")
	if err != nil {
		return errors.WrapIO("create", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := f.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return errors.WrapIO("write", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapIO("write", tmpName, err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		return errors.WrapIO("rename", d.path, err)
	}
	return nil
}

// Worksheet is one tab of a workbook.
type Worksheet struct {
	doc   *Document
	title string
}

var _ worksheet.Worksheet = (*Worksheet)(nil)

// Title returns the tab name.
func (w *Worksheet) Title() string {
	return w.title
}

func (w *Worksheet) rows(f *excelize.File) ([][]string, error) {
	rows, err := f.GetRows(w.title)
	if err != nil {
		return nil, errors.NewParseError("xlsx", w.doc.path, "cannot read tab "+w.title, err)
	}
	// A replace leaves blanked cells behind; they are not part of the data.
	for i, rec := range rows {
		n := len(rec)
		for n > 0 && rec[n-1] == "" {
			n--
		}
		rows[i] = rec[:n]
	}
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

func (w *Worksheet) snapshot(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()

	f, err := w.doc.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return w.rows(f)
}

// Read returns every record of the tab keyed by its header row.
func (w *Worksheet) Read(ctx context.Context) (*table.Table, error) {
	rows, err := w.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return worksheet.FromValues(rows), nil
}

// Header returns the first row of the tab.
func (w *Worksheet) Header(ctx context.Context) ([]string, error) {
	rows, err := w.snapshot(ctx)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Replace overwrites the tab with t, blanking any cells beyond its extent.
func (w *Worksheet) Replace(ctx context.Context, t *table.Table) error {
	return w.update(ctx, func(f *excelize.File, current [][]string) error {
		cols := 0
		for _, rec := range current {
			cols = max(cols, len(rec))
		}
		return writeRows(f, w.title, worksheet.Pad(worksheet.ToValues(t), len(current), cols), 1)
	})
}

// Append writes rows after the last non-blank row.
func (w *Worksheet) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	return w.update(ctx, func(f *excelize.File, current [][]string) error {
		return writeRows(f, w.title, rows, len(current)+1)
	})
}

func (w *Worksheet) update(ctx context.Context, fn func(*excelize.File, [][]string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.doc.mu.Lock()
	defer w.doc.mu.Unlock()

	f, err := w.doc.open()
	if err != nil {
		return err
	}
	defer f.Close()

	current, err := w.rows(f)
	if err != nil {
		return err
	}
	if err := fn(f, current); err != nil {
		return errors.WrapIO("write", w.doc.path, err)
	}
	return w.doc.save(f)
}

// writeRows sets rows starting at the given 1-based row number. Values are
// always written as strings.
func writeRows(f *excelize.File, sheet string, rows [][]string, start int) error {
	for i, rec := range rows {
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		values := make([]any, len(rec))
		for j, v := range rec {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}
