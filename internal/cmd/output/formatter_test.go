package output

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pubmap/pkg/table"
)

func sample() *table.Table {
	t := table.New("publication_id", "bundle_id", "domain")
	t.Append(
		table.Row{"publication_id": "007", "bundle_id": "com.one", "domain": "one.com"},
		table.Row{"publication_id": "008", "domain": "two.com"},
	)
	return t
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "JSON", "yaml", ""} {
		_, err := ParseFormat(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestDetectFormatExplicit(t *testing.T) {
	assert.Equal(t, FormatYAML, DetectFormat("YAML"))
}

func TestFromTable(t *testing.T) {
	data := FromTable(sample())
	assert.Equal(t, []string{"publication_id", "bundle_id", "domain"}, data.Headers)
	assert.Equal(t, [][]string{{"007", "com.one", "one.com"}, {"008", "", "two.com"}}, data.Rows)
	assert.Empty(t, FromTable(nil).Rows)
}

func TestJSONFormatterTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON).Format(&buf, sample()))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "007", got[0]["publication_id"])
	_, present := got[1]["bundle_id"]
	assert.False(t, present, "null cells are omitted")
}

func TestYAMLFormatterData(t *testing.T) {
	var buf bytes.Buffer
	data := Data{Headers: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	require.NoError(t, NewFormatter(FormatYAML).Format(&buf, data))

	var got []map[string]string
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]string{{"a": "1", "b": "2"}}, got)
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable).Format(&buf, sample()))

	out := buf.String()
	assert.Contains(t, out, "com.one")
	assert.Contains(t, out, "two.com")
}

func TestTableFormatterStruct(t *testing.T) {
	type stats struct {
		IncomingRows int `json:"incoming_rows"`
		AppendRows   int
	}

	var buf bytes.Buffer
	require.NoError(t, (&TableFormatter{}).Format(&buf, stats{IncomingRows: 4, AppendRows: 2}))
	assert.Contains(t, buf.String(), "Incoming Rows")
	assert.Contains(t, buf.String(), "AppendRows")
}

func TestFormatterFunc(t *testing.T) {
	var called bool
	f := FormatterFunc(func(_ io.Writer, _ any) error {
		called = true
		return nil
	})
	require.NoError(t, f.Format(nil, nil))
	assert.True(t, called)
}
