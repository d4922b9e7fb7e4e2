package attachment_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/agentstation/pubmap/internal/attachment"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want attachment.Format
		ok   bool
	}{
		{"report.csv", attachment.CSV, true},
		{"REPORT.XLSX", attachment.XLSX, true},
		{"report.xls", "", false},
		{"report", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := attachment.FormatOf(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, attachment.Supported(tt.name))
		})
	}
}

func TestParseCSV(t *testing.T) {
	data := "\xef\xbb\xbfPublication ID,Bundle ID,Publication URL\n" +
		"007, com.a ,a.com\n" +
		"008,NaN,\n" +
		",,\n" +
		"009,N/A\n"

	got, err := attachment.Parse("report.csv", strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Publication ID", "Bundle ID", "Publication URL"}, got.Columns)
	require.Equal(t, 3, got.Len(), "blank lines are skipped")
	assert.Equal(t, table.Row{"Publication ID": "007", "Bundle ID": " com.a ", "Publication URL": "a.com"}, got.Rows[0])
	assert.Equal(t, table.Row{"Publication ID": "008"}, got.Rows[1])
	assert.Equal(t, table.Row{"Publication ID": "009"}, got.Rows[2])
}

func TestParseCSVHeaderNames(t *testing.T) {
	got, err := attachment.Parse("r.csv", strings.NewReader("a,,a,a\n1,2,3,4\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "unnamed: 1", "a.1", "a.2"}, got.Columns)
	assert.Equal(t, "4", got.Rows[0]["a.2"])

	got, err = attachment.Parse("r.csv", strings.NewReader("a,a.1,a\n1,2,3\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a.1", "a.2"}, got.Columns)
	assert.Equal(t, table.Row{"a": "1", "a.1": "2", "a.2": "3"}, got.Rows[0])
}

func TestParseCSVErrors(t *testing.T) {
	t.Run("malformed quote", func(t *testing.T) {
		_, err := attachment.Parse("bad.csv", strings.NewReader("a,b\n\"1,2\n3,\"4\"x\n"))
		require.Error(t, err)

		var perr *errors.ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "csv", perr.Format)
		assert.Equal(t, "bad.csv", perr.File)
		assert.True(t, errors.IsStructural(err))
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := attachment.Parse("empty.csv", strings.NewReader("\n\n"))
		assert.True(t, errors.IsStructural(err))
	})

	t.Run("unsupported extension", func(t *testing.T) {
		_, err := attachment.Parse("report.pdf", strings.NewReader("x"))
		assert.True(t, errors.IsStructural(err))
	})
}

func xlsxFixture(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := xlsxFixture(t, [][]any{
		{"Publication ID", "Bundle ID", "Publication URL"},
		{"P1", "com.one", "one.com"},
		{"P2", nil, "#N/A"},
	})

	got, err := attachment.Parse("Report.XLSX", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Publication ID", "Bundle ID", "Publication URL"}, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, table.Row{"Publication ID": "P1", "Bundle ID": "com.one", "Publication URL": "one.com"}, got.Rows[0])
	assert.Equal(t, table.Row{"Publication ID": "P2"}, got.Rows[1])
}

func TestParseXLSXNotAWorkbook(t *testing.T) {
	_, err := attachment.Parse("report.xlsx", strings.NewReader("not a zip"))
	require.Error(t, err)

	var perr *errors.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "xlsx", perr.Format)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("publication_id,bundle_id,domain\n1,b,d\n"), 0o600))

	got, err := attachment.ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1", "b", "d"}}, got.Values())

	_, err = attachment.ParseFile(filepath.Join(t.TempDir(), "missing.csv"))
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestIsNA(t *testing.T) {
	for _, v := range []string{"", "NA", "N/A", "NaN", "nan", "NULL", "null", "None", "#N/A", "<NA>"} {
		assert.True(t, attachment.IsNA(v), v)
	}
	for _, v := range []string{" ", "0", "none", "-", "n.a."} {
		assert.False(t, attachment.IsNA(v), v)
	}
}
