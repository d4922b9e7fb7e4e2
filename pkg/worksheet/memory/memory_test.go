package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet/memory"
)

func TestMissingWorksheet(t *testing.T) {
	doc := memory.New()

	_, err := doc.Worksheet(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsStructural(err))
}

func TestReadTreatsEmptyCellsAsNull(t *testing.T) {
	doc := memory.New()
	doc.AddSheet("ref", [][]string{
		{"publication_id", "bundle_id", "domain"},
		{"3", "", ""},
	})

	ws, err := doc.Worksheet(context.Background(), "ref")
	require.NoError(t, err)

	tbl, err := ws.Read(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.True(t, tbl.Rows[0].IsNull("bundle_id"))
	assert.Equal(t, "ref", ws.Title())
}

func TestReplaceAndAppend(t *testing.T) {
	ctx := context.Background()
	doc := memory.New()
	doc.AddSheet("ref", [][]string{{"a"}, {"1"}, {"2"}, {"3"}})
	doc.AddSheet("out", [][]string{{"x", "y"}, {"old", "row"}})

	ref, err := doc.Worksheet(ctx, "ref")
	require.NoError(t, err)
	replacement := table.New("a", "b")
	replacement.Append(table.Row{"a": "9"})
	require.NoError(t, ref.Replace(ctx, replacement))
	assert.Equal(t, [][]string{{"a", "b"}, {"9", ""}}, doc.Values("ref"))

	out, err := doc.Worksheet(ctx, "out")
	require.NoError(t, err)
	require.NoError(t, out.Append(ctx, [][]string{{"n", "1"}}))
	assert.Equal(t, [][]string{{"x", "y"}, {"old", "row"}, {"n", "1"}}, doc.Values("out"))

	header, err := out.Header(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, header)

	assert.Equal(t, []string{"replace:ref", "append:out"}, doc.Calls())
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	doc := memory.New()
	doc.AddSheet("out", [][]string{{"x"}})
	boom := errors.New("boom")
	doc.Fail("out", memory.OpAppend, boom)

	ws, err := doc.Worksheet(ctx, "out")
	require.NoError(t, err)
	assert.ErrorIs(t, ws.Append(ctx, [][]string{{"1"}}), boom)
	assert.Equal(t, [][]string{{"x"}}, doc.Values("out"))
	assert.Empty(t, doc.Calls())

	doc.Fail("out", memory.OpAppend, nil)
	assert.NoError(t, ws.Append(ctx, [][]string{{"1"}}))
}

func TestHeaderOfEmptySheet(t *testing.T) {
	doc := memory.New()
	doc.AddSheet("out", nil)

	ws, err := doc.Worksheet(context.Background(), "out")
	require.NoError(t, err)
	header, err := ws.Header(context.Background())
	require.NoError(t, err)
	assert.Empty(t, header)
}
