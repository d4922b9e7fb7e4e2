// Package app provides the application context and dependency management
// for the pubmap CLI. It centralizes configuration, logging, and the
// construction of sources, documents and pipeline clients.
package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/agentstation/pubmap"
	"github.com/agentstation/pubmap/internal/sheets"
	"github.com/agentstation/pubmap/internal/sources/local"
	"github.com/agentstation/pubmap/internal/sources/mailbox"
	"github.com/agentstation/pubmap/internal/workbook"
	"github.com/agentstation/pubmap/pkg/reconciler"
	"github.com/agentstation/pubmap/pkg/schedule"
	"github.com/agentstation/pubmap/pkg/sources"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

// App represents the pubmap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config      *Config
	logger      *zerolog.Logger
	fixedLogger bool
	stdout      io.Writer

	// Overrides used by tests
	source   sources.Source
	document worksheet.Document
	sleep    schedule.SleepFunc
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and can be replaced with
// functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		stdout:  os.Stdout,
	}

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.config == nil {
		config, err := LoadConfig("")
		if err != nil {
			return nil, err
		}
		app.config = config
	}
	if app.logger == nil {
		logger := NewLogger(app.config)
		app.logger = &logger
	}
	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Source returns the dataset source: the file at path when given, the
// configured mailbox otherwise.
func (a *App) Source(path string) (sources.Source, error) {
	if a.source != nil {
		return a.source, nil
	}
	if path != "" {
		return local.New(path), nil
	}
	return mailbox.New(mailbox.Config{
		Addr:          a.config.IMAPAddr,
		Username:      a.config.GmailUser,
		Password:      a.config.GmailAppPassword,
		Mailbox:       a.config.IMAPMailbox,
		Sender:        a.config.SenderEmail,
		ScanDepth:     a.config.ScanDepth,
		AttachmentDir: a.config.AttachmentDir,
	})
}

// Document opens the spreadsheet holding both tabs: a local workbook when
// WORKBOOK_FILE is set, Google Sheets otherwise.
func (a *App) Document(ctx context.Context) (worksheet.Document, error) {
	if a.document != nil {
		return a.document, nil
	}
	if a.config.WorkbookFile != "" {
		return workbook.Open(a.config.WorkbookFile)
	}
	return sheets.New(ctx, sheets.Config{
		URL:             a.config.SheetURL,
		CredentialsFile: a.config.ServiceAccountFile,
	})
}

// Reconciler builds a reconciler with the configured null policy.
func (a *App) Reconciler() (reconciler.Reconciler, error) {
	policy, err := reconciler.ParseNullPolicy(a.config.NullPolicy)
	if err != nil {
		return nil, err
	}
	return reconciler.New(reconciler.WithNullPolicy(policy))
}

// Client assembles a pipeline client over src and doc. Options given here
// override the configured ones.
func (a *App) Client(src sources.Source, doc worksheet.Document, opts ...pubmap.Option) (pubmap.Client, error) {
	rec, err := a.Reconciler()
	if err != nil {
		return nil, err
	}
	return pubmap.New(append([]pubmap.Option{
		pubmap.WithSource(src),
		pubmap.WithDocument(doc),
		pubmap.WithReferenceSheet(a.config.ReferenceSheet),
		pubmap.WithTargetSheet(a.config.TargetSheet),
		pubmap.WithReconciler(rec),
		pubmap.WithLogger(a.logger),
	}, opts...)...)
}

// ScheduleConfig returns the scheduler settings.
func (a *App) ScheduleConfig() (schedule.Config, error) {
	loc, err := a.config.Location()
	if err != nil {
		return schedule.Config{}, err
	}
	cfg := schedule.Config{
		RunImmediately: a.config.RunImmediately,
		Hour:           a.config.RunHour,
		Minute:         a.config.RunMinute,
		Location:       loc,
		PollInterval:   a.config.PollInterval,
		Backoff:        a.config.RetryBackoff,
	}
	return cfg, cfg.Validate()
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(ctx context.Context) error {
	if a.source == nil {
		return nil
	}
	return a.source.Cleanup()
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		a.fixedLogger = true
		return nil
	}
}

// WithOutput sets where command output is printed.
func WithOutput(w io.Writer) Option {
	return func(a *App) error {
		a.stdout = w
		return nil
	}
}

// WithSource replaces the configured dataset source.
func WithSource(src sources.Source) Option {
	return func(a *App) error {
		a.source = src
		return nil
	}
}

// WithDocument replaces the configured spreadsheet.
func WithDocument(doc worksheet.Document) Option {
	return func(a *App) error {
		a.document = doc
		return nil
	}
}

// WithSleep replaces the scheduler's sleep function.
func WithSleep(sleep schedule.SleepFunc) Option {
	return func(a *App) error {
		a.sleep = sleep
		return nil
	}
}
