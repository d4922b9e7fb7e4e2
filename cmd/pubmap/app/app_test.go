package app

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/pubmap/internal/workbook"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/sources"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet/memory"
)

const incomingCSV = "Publication ID,Bundle ID,Publication URL\n1,com.one,one.com\n9,com.nine,nine.com\n"

type emptySource struct {
	mu      sync.Mutex
	fetches int
}

func (s *emptySource) ID() sources.ID { return sources.LocalID }

func (s *emptySource) Fetch(context.Context) (*sources.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return nil, sources.ErrNoDataset
}

func (s *emptySource) Cleanup() error { return nil }

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testConfig() *Config {
	c := validConfig()
	c.SheetURL = ""
	c.WorkbookFile = "unused.xlsx"
	c.ReferenceSheet = "ref"
	c.TargetSheet = "map"
	return c
}

func newTestApp(t *testing.T, config *Config, opts ...Option) (*App, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	opts = append([]Option{
		WithConfig(config),
		WithLogger(logging.NewNopLogger()),
		WithOutput(&out),
	}, opts...)
	app, err := New("1.2.3", "abc123", "2024-01-01", "test", opts...)
	require.NoError(t, err)
	return app, &out
}

func newMemoryDocument() *memory.Document {
	doc := memory.New()
	doc.AddSheet("ref", [][]string{
		{"publication_id", "bundle_id", "domain"},
		{"1", "", ""},
	})
	doc.AddSheet("map", [][]string{
		{"Publication_ID", "Bundle_ID", "Domain"},
	})
	return doc
}

func TestNew(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	assert.Equal(t, "1.2.3", app.Version())
	assert.NotNil(t, app.Logger())
	assert.Equal(t, "ref", app.Config().ReferenceSheet)
}

func TestVersionCommand(t *testing.T) {
	app, out := newTestApp(t, testConfig())
	require.NoError(t, app.Execute(context.Background(), []string{"version"}))
	assert.Equal(t, "pubmap 1.2.3\n", out.String())

	out.Reset()
	require.NoError(t, app.Execute(context.Background(), []string{"version", "-v"}))
	assert.Contains(t, out.String(), "commit:   abc123")
}

func TestInvalidOutputFormat(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	err := app.Execute(context.Background(), []string{"version", "-o", "xml"})
	assert.ErrorContains(t, err, "invalid format")
}

func TestOnceDryRun(t *testing.T) {
	doc := newMemoryDocument()
	app, out := newTestApp(t, testConfig(), WithDocument(doc))
	file := writeFile(t, "report.csv", incomingCSV)

	err := app.Execute(context.Background(), []string{"once", "--file", file, "--dry-run", "-o", "json"})
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &summary))
	assert.Equal(t, "dry run", summary["status"])
	assert.Equal(t, "report.csv", summary["dataset"])
	assert.Contains(t, summary["summary"], "1 rows to append")
	assert.Empty(t, doc.Calls(), "dry run writes nothing")
}

func TestOncePublishesToWorkbook(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "publications.xlsx")
	book, err := workbook.Create(path, map[string][]string{
		"ref": {"publication_id", "bundle_id", "domain"},
		"map": {"Publication_ID", "Bundle_ID", "Domain"},
	})
	require.NoError(t, err)
	ref, err := book.Worksheet(ctx, "ref")
	require.NoError(t, err)
	seed := table.New("publication_id", "bundle_id", "domain")
	seed.Append(table.Row{"publication_id": "1"})
	require.NoError(t, ref.Replace(ctx, seed))

	config := testConfig()
	config.WorkbookFile = path
	app, out := newTestApp(t, config)
	file := writeFile(t, "report.csv", incomingCSV)

	require.NoError(t, app.Execute(ctx, []string{"once", "-f", file, "-o", "yaml"}))
	assert.Contains(t, out.String(), "status: published")

	reopened, err := workbook.Open(path)
	require.NoError(t, err)
	target, err := reopened.Worksheet(ctx, "map")
	require.NoError(t, err)
	got, err := target.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, table.Row{"Publication_ID": "1", "Bundle_ID": "com.one", "Domain": "one.com"}, got.Rows[0])
}

func TestOnceRequiresMailSettings(t *testing.T) {
	config := testConfig()
	config.GmailUser = ""
	app, _ := newTestApp(t, config, WithDocument(newMemoryDocument()))

	err := app.Execute(context.Background(), []string{"once"})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.ErrorContains(t, err, "GMAIL_USER")
}

func TestReconcileCommand(t *testing.T) {
	app, out := newTestApp(t, testConfig())
	reference := writeFile(t, "ref.csv", "publication_id,bundle_id,domain\n1,,\n2,,\n2,x,\n")
	incoming := writeFile(t, "report.csv", incomingCSV)

	err := app.Execute(context.Background(), []string{
		"reconcile", "--reference", reference, "--incoming", incoming,
		"--schema", "Publication_ID,Bundle_ID,Domain", "-o", "json",
	})
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	assert.Equal(t, []map[string]string{
		{"publication_id": "1", "bundle_id": "com.one", "domain": "one.com"},
	}, rows)
}

func TestReconcileCleanedReference(t *testing.T) {
	app, out := newTestApp(t, testConfig())
	reference := writeFile(t, "ref.csv", "publication_id,bundle_id,domain\n1,,\n2,,\n2,x,\n")
	incoming := writeFile(t, "report.csv", incomingCSV)
	target := writeFile(t, "map.csv", "Publication_ID,Bundle_ID,Domain\n")

	err := app.Execute(context.Background(), []string{
		"reconcile", "--reference", reference, "--incoming", incoming,
		"--target", target, "--cleaned", "-o", "json",
	})
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1, "both rows of the duplicated ID are removed")
	assert.Equal(t, "1", rows[0]["publication_id"])
}

func TestReconcileRequiresSchema(t *testing.T) {
	app, _ := newTestApp(t, testConfig())
	err := app.Execute(context.Background(), []string{
		"reconcile", "--reference", "ref.csv", "--incoming", "report.csv",
	})
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &emptySource{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var waits []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		cancel()
		return ctx.Err()
	}
	app, _ := newTestApp(t, testConfig(),
		WithSource(src),
		WithDocument(newMemoryDocument()),
		WithSleep(sleep),
	)

	require.NoError(t, app.Execute(ctx, []string{"run", "--now"}))
	assert.Equal(t, 1, src.fetches)
	assert.Equal(t, []time.Duration{2 * time.Hour}, waits)
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	config := testConfig()
	config.RunHour = 24
	app, _ := newTestApp(t, config, WithSource(&emptySource{}), WithDocument(newMemoryDocument()))

	err := app.Execute(context.Background(), []string{"run"})
	assert.True(t, errors.IsValidationError(err))
}
