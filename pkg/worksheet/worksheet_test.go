package worksheet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

func TestFromValues(t *testing.T) {
	got := worksheet.FromValues([][]string{
		{"publication_id", "bundle_id", "domain"},
		{"1", "", "a.com"},
		{},
		{"2"},
		{"", "", ""},
	})

	assert.Equal(t, []string{"publication_id", "bundle_id", "domain"}, got.Columns)
	assert.Equal(t, 2, got.Len(), "blank rows are skipped")
	assert.True(t, got.Rows[0].IsNull("bundle_id"))
	assert.Equal(t, table.Row{"publication_id": "2"}, got.Rows[1])
}

func TestFromValuesEmpty(t *testing.T) {
	got := worksheet.FromValues(nil)
	assert.Empty(t, got.Columns)
	assert.Equal(t, 0, got.Len())
}

func TestToValues(t *testing.T) {
	tbl := table.New("a", "b")
	tbl.Append(table.Row{"a": "1"})

	assert.Equal(t, [][]string{{"a", "b"}, {"1", ""}}, worksheet.ToValues(tbl))
}

func TestPad(t *testing.T) {
	got := worksheet.Pad([][]string{{"a", "b"}, {"1"}}, 4, 3)

	assert.Equal(t, [][]string{
		{"a", "b", ""},
		{"1", "", ""},
		{"", "", ""},
		{"", "", ""},
	}, got)
}

func TestPadNeverShrinks(t *testing.T) {
	got := worksheet.Pad([][]string{{"a", "b", "c"}, {"1"}}, 1, 1)
	assert.Len(t, got, 2)
	assert.Len(t, got[1], 3)
}
