// Package sheets implements worksheet.Document on top of the Google Sheets
// API. Tabs are read with values.get, replaced with a single padded
// values.update and appended to with values.append.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/auth/credentials"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

const service = "sheets"

const (
	valueInputRaw   = "RAW"
	insertRows      = "INSERT_ROWS"
	renderFormatted = "FORMATTED_VALUE"
)

var idPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

var bareID = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

// SpreadsheetID extracts the spreadsheet ID from a document URL. A bare ID is
// returned as-is.
func SpreadsheetID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if m := idPattern.FindStringSubmatch(raw); m != nil {
		return m[1], nil
	}
	if bareID.MatchString(raw) {
		return raw, nil
	}
	return "", errors.NewConfigError(service, fmt.Sprintf("cannot find a spreadsheet ID in %q", raw), nil)
}

// Config holds the document settings.
type Config struct {
	URL             string // document URL or ID
	CredentialsFile string // service account key; empty uses application default credentials
	Options         []option.ClientOption
}

// Document is a Google Sheets spreadsheet.
type Document struct {
	svc *gsheets.Service
	id  string
}

var _ worksheet.Document = (*Document)(nil)

// New authenticates and opens the spreadsheet named by cfg.URL.
func New(ctx context.Context, cfg Config) (*Document, error) {
	id, err := SpreadsheetID(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption(nil), cfg.Options...)
	if len(opts) == 0 {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{gsheets.SpreadsheetsScope},
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			return nil, errors.NewAuthenticationError(service, "service_account",
				"cannot load credentials from "+credentialsName(cfg.CredentialsFile), err)
		}
		opts = append(opts, option.WithAuthCredentials(creds))
	}

	svc, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfigError(service, "cannot create client", err)
	}
	return &Document{svc: svc, id: id}, nil
}

func credentialsName(path string) string {
	if path == "" {
		return "application default credentials"
	}
	return path
}

// ID returns the spreadsheet ID.
func (d *Document) ID() string {
	return d.id
}

// Worksheet opens the tab called title.
func (d *Document) Worksheet(ctx context.Context, title string) (worksheet.Worksheet, error) {
	props, err := d.properties(ctx, title)
	if err != nil {
		return nil, err
	}
	return &Worksheet{doc: d, props: props}, nil
}

func (d *Document) properties(ctx context.Context, title string) (*gsheets.SheetProperties, error) {
	ss, err := d.svc.Spreadsheets.Get(d.id).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("open", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties, nil
		}
	}
	return nil, errors.NewStructuralError("worksheet", title, "tab not found in spreadsheet "+d.id)
}

// Worksheet is one tab of a Document.
type Worksheet struct {
	doc   *Document
	props *gsheets.SheetProperties
}

var _ worksheet.Worksheet = (*Worksheet)(nil)

// Title returns the tab name.
func (w *Worksheet) Title() string {
	return w.props.Title
}

// a1 quotes the tab title for use in an A1 range.
func (w *Worksheet) a1(suffix string) string {
	r := "'" + strings.ReplaceAll(w.props.Title, "'", "''") + "'"
	if suffix != "" {
		r += "!" + suffix
	}
	return r
}

func (w *Worksheet) values(ctx context.Context, rng string) ([][]string, error) {
	resp, err := w.doc.svc.Spreadsheets.Values.Get(w.doc.id, rng).
		ValueRenderOption(renderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, mapError("read "+w.props.Title, err)
	}
	return toStrings(resp.Values), nil
}

// Read returns every record of the tab keyed by its header row.
func (w *Worksheet) Read(ctx context.Context) (*table.Table, error) {
	start := time.Now()
	values, err := w.values(ctx, w.a1(""))
	if err != nil {
		return nil, err
	}
	t := worksheet.FromValues(values)
	logging.FromContext(ctx).Debug().
		Str("worksheet", w.props.Title).
		Int("rows", t.Len()).
		Dur("took", time.Since(start)).
		Msg("Read worksheet")
	return t, nil
}

// Header returns the first row of the tab.
func (w *Worksheet) Header(ctx context.Context) ([]string, error) {
	values, err := w.values(ctx, w.a1("1:1"))
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// Replace writes t over the tab in one values.update. The grid is padded to
// the previous extent so leftover cells are blanked in the same request.
func (w *Worksheet) Replace(ctx context.Context, t *table.Table) error {
	current, err := w.values(ctx, w.a1(""))
	if err != nil {
		return err
	}
	cols := 0
	for _, rec := range current {
		cols = max(cols, len(rec))
	}
	grid := worksheet.Pad(worksheet.ToValues(t), len(current), cols)

	if err := w.ensureGrid(ctx, len(grid), width(grid)); err != nil {
		return err
	}

	_, err = w.doc.svc.Spreadsheets.Values.Update(w.doc.id, w.a1("A1"), &gsheets.ValueRange{
		Values: toInterfaces(grid),
	}).ValueInputOption(valueInputRaw).Context(ctx).Do()
	if err != nil {
		return mapError("replace "+w.props.Title, err)
	}

	logging.FromContext(ctx).Debug().
		Str("worksheet", w.props.Title).
		Int("rows", t.Len()).
		Int("cleared_rows", len(grid)-t.Len()-1).
		Msg("Replaced worksheet")
	return nil
}

// ensureGrid grows the tab when the write would not fit its grid.
func (w *Worksheet) ensureGrid(ctx context.Context, rows, cols int) error {
	gp := w.props.GridProperties
	if gp == nil || (int64(rows) <= gp.RowCount && int64(cols) <= gp.ColumnCount) {
		return nil
	}
	grown := &gsheets.GridProperties{
		RowCount:    max(gp.RowCount, int64(rows)),
		ColumnCount: max(gp.ColumnCount, int64(cols)),
	}
	req := &gsheets.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheets.Request{{
			UpdateSheetProperties: &gsheets.UpdateSheetPropertiesRequest{
				Properties: &gsheets.SheetProperties{
					SheetId:        w.props.SheetId,
					GridProperties: grown,
				},
				Fields: "gridProperties.rowCount,gridProperties.columnCount",
			},
		}},
	}
	if _, err := w.doc.svc.Spreadsheets.BatchUpdate(w.doc.id, req).Context(ctx).Do(); err != nil {
		return mapError("resize "+w.props.Title, err)
	}
	w.props.GridProperties = grown
	return nil
}

// Append adds rows after the last row of the tab.
func (w *Worksheet) Append(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := w.doc.svc.Spreadsheets.Values.Append(w.doc.id, w.a1("A1"), &gsheets.ValueRange{
		Values: toInterfaces(rows),
	}).ValueInputOption(valueInputRaw).InsertDataOption(insertRows).Context(ctx).Do()
	if err != nil {
		return mapError("append "+w.props.Title, err)
	}
	logging.FromContext(ctx).Debug().
		Str("worksheet", w.props.Title).
		Int("rows", len(rows)).
		Msg("Appended to worksheet")
	return nil
}

// mapError converts API failures into the pipeline's error types.
func mapError(op string, err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return errors.WrapTransport(service, op, err)
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuthenticationError(service, op, apiErr.Message, err)
	case http.StatusNotFound:
		return errors.NewStructuralError("spreadsheet", op, apiErr.Message)
	}
	return errors.NewTransportError(service, op, apiErr.Code, err)
}

func toStrings(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, rec := range values {
		row := make([]string, len(rec))
		for j, v := range rec {
			if v != nil {
				row[j] = fmt.Sprint(v)
			}
		}
		out[i] = row
	}
	return out
}

func toInterfaces(values [][]string) [][]any {
	out := make([][]any, len(values))
	for i, rec := range values {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		out[i] = row
	}
	return out
}

func width(values [][]string) int {
	n := 0
	for _, rec := range values {
		n = max(n, len(rec))
	}
	return n
}
