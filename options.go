package pubmap

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/reconciler"
	"github.com/agentstation/pubmap/pkg/sources"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

// options holds the client configuration.
type options struct {
	source         sources.Source
	document       worksheet.Document
	referenceSheet string
	targetSheet    string
	reconciler     reconciler.Reconciler
	dryRun         bool
	logger         *zerolog.Logger
}

// Option is a function that configures a Client.
type Option func(*options)

func defaults() *options {
	return &options{}
}

func (o *options) apply(opts ...Option) *options {
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) validate() error {
	switch {
	case o.source == nil:
		return errors.NewValidationError("source", nil, "a source is required")
	case o.document == nil:
		return errors.NewValidationError("document", nil, "a document is required")
	case o.referenceSheet == "":
		return errors.NewValidationError("reference_sheet", o.referenceSheet, "the reference sheet name is required")
	case o.targetSheet == "":
		return errors.NewValidationError("target_sheet", o.targetSheet, "the target sheet name is required")
	case o.referenceSheet == o.targetSheet:
		return errors.NewValidationError("target_sheet", o.targetSheet, "the target sheet must differ from the reference sheet")
	}
	return nil
}

// WithSource sets where incoming datasets come from.
func WithSource(src sources.Source) Option {
	return func(o *options) {
		o.source = src
	}
}

// WithDocument sets the spreadsheet holding both tabs.
func WithDocument(doc worksheet.Document) Option {
	return func(o *options) {
		o.document = doc
	}
}

// WithReferenceSheet sets the name of the reference ("no-domain") tab.
func WithReferenceSheet(title string) Option {
	return func(o *options) {
		o.referenceSheet = title
	}
}

// WithTargetSheet sets the name of the append-only mapping tab.
func WithTargetSheet(title string) Option {
	return func(o *options) {
		o.targetSheet = title
	}
}

// WithReconciler replaces the default reconciler, for example to use the
// legacy null policy.
func WithReconciler(rec reconciler.Reconciler) Option {
	return func(o *options) {
		o.reconciler = rec
	}
}

// WithDryRun computes and logs runs without writing anything.
func WithDryRun(enabled bool) Option {
	return func(o *options) {
		o.dryRun = enabled
	}
}

// WithLogger sets the logger used when the run context carries none.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
