// Package attachment decodes report files (CSV or XLSX) into tables.
//
// The first row is the header. Empty header cells become "unnamed: N" and
// repeated header names get a ".N" suffix so no column is lost. Cells holding
// one of the common spreadsheet/pandas missing-value markers are null; every
// other cell is kept verbatim, untrimmed and untyped.
package attachment

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

// Format is a supported attachment format.
type Format string

// Supported formats.
const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// FormatOf returns the format implied by a file name's extension.
func FormatOf(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return CSV, true
	case ".xlsx":
		return XLSX, true
	}
	return "", false
}

// Supported reports whether name has a parseable extension.
func Supported(name string) bool {
	_, ok := FormatOf(name)
	return ok
}

// naMarkers are the strings read as missing values.
var naMarkers = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// IsNA reports whether a cell value means "missing".
func IsNA(v string) bool {
	_, ok := naMarkers[v]
	return ok
}

// ParseFile opens and decodes the file at path.
func ParseFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer f.Close()
	return Parse(filepath.Base(path), f)
}

// Parse decodes r according to the extension of name.
func Parse(name string, r io.Reader) (*table.Table, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, errors.NewParseError(strings.TrimPrefix(filepath.Ext(name), "."), name, "unsupported file type", nil)
	}

	var (
		records [][]string
		err     error
	)
	switch format {
	case CSV:
		records, err = readCSV(name, r)
	case XLSX:
		records, err = readXLSX(name, r)
	}
	if err != nil {
		return nil, err
	}
	return build(format, name, records)
}

func readCSV(name string, r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		perr := errors.NewParseError(string(CSV), name, err.Error(), err)
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			perr.Line = csvErr.Line
		}
		return nil, perr
	}
	return records, nil
}

func readXLSX(name string, r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.NewParseError(string(XLSX), name, "cannot open workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.NewParseError(string(XLSX), name, "workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.NewParseError(string(XLSX), name, fmt.Sprintf("cannot read sheet %q", sheets[0]), err)
	}
	return rows, nil
}

func build(format Format, name string, records [][]string) (*table.Table, error) {
	records = dropBlank(records)
	if len(records) == 0 {
		return nil, errors.NewParseError(string(format), name, "file has no header row", nil)
	}

	header := headerNames(records[0])
	t := table.New(header...)
	for _, rec := range records[1:] {
		row := make(table.Row, len(header))
		for i, col := range header {
			if i < len(rec) && !IsNA(rec[i]) {
				row[col] = rec[i]
			}
		}
		t.Append(row)
	}
	return t, nil
}

func dropBlank(records [][]string) [][]string {
	out := records[:0:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

func headerNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := make(map[string]int, len(raw))
	for i, h := range raw {
		name := h
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}
