// Package reconciler computes what a pipeline run publishes. Given the incoming
// dataset, the reference ("no-domain") table and the append tab's header, it
// normalizes both tables, removes ambiguous reference rows, fills bundle and
// domain values from the incoming data and shapes the result to the append tab.
//
// Everything here is pure in-memory work; reading and writing worksheets is
// the caller's job.
package reconciler

import (
	"context"
	"time"

	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/table"
)

// Reconciler is the main interface for computing a run's writes.
type Reconciler interface {
	// Reconcile runs normalization, deduplication, merge and schema adaptation.
	Reconcile(ctx context.Context, in Input) (*Result, error)

	// Normalizer returns the normalizer used for incoming and reference tables.
	Normalizer() *Normalizer
}

// Input is a snapshot of everything a reconciliation reads.
type Input struct {
	// Incoming is the freshly arrived dataset, as parsed.
	Incoming *table.Table

	// Reference is the current content of the reference tab.
	Reference *table.Table

	// Schema is the raw header row of the append tab.
	Schema []string
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	normalizer *Normalizer
}

// New creates a new Reconciler with options.
func New(opts ...Option) (Reconciler, error) {
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &reconciler{normalizer: NewNormalizer(options.policy, options.aliases)}, nil
}

// Normalizer implements Reconciler.
func (r *reconciler) Normalizer() *Normalizer {
	return r.normalizer
}

// Reconcile performs reconciliation step by step. Any error leaves nothing to write.
func (r *reconciler) Reconcile(ctx context.Context, in Input) (*Result, error) {
	if in.Incoming == nil || in.Reference == nil {
		return nil, &errors.ValidationError{Field: "input", Message: "incoming and reference tables are required"}
	}

	logger := logging.FromContext(ctx)
	result := &Result{Metadata: ResultMetadata{StartTime: time.Now()}}
	stats := &result.Metadata.Stats
	stats.IncomingRows = in.Incoming.Len()
	stats.ReferenceRows = in.Reference.Len()

	// Step 1: Normalize both tables
	incoming, err := r.normalizer.Normalize("incoming", in.Incoming)
	if err != nil {
		return nil, err
	}
	reference, err := r.normalizer.Normalize("reference", in.Reference)
	if err != nil {
		return nil, err
	}

	// Step 2: Clean the reference table
	cleaned, dedupe, err := Deduplicate("reference", reference)
	if err != nil {
		return nil, err
	}
	result.Reference = cleaned
	result.DuplicateIDs = dedupe.DuplicateIDs
	stats.DuplicateIDRows = dedupe.DuplicateIDRows
	stats.ReferenceDuplicates = dedupe.ExactDuplicates
	stats.CleanedReferenceRows = cleaned.Len()
	if dedupe.DuplicateIDRows > 0 {
		logger.Warn().
			Strs("publication_ids", dedupe.DuplicateIDs).
			Int("rows_removed", dedupe.DuplicateIDRows).
			Msg("Removed reference rows with duplicate publication IDs")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Step 3: Merge incoming values into the reference rows
	merged, mergeReport, err := Merge(cleaned, incoming)
	if err != nil {
		return nil, err
	}
	result.Merged = merged
	stats.MatchedRows = mergeReport.Matched
	stats.DroppedEmpty = mergeReport.DroppedEmpty
	stats.MergedDuplicates = mergeReport.ExactDuplicates

	// Step 4: Shape to the append tab
	appendRows, err := Adapt(merged, NormalizeSchema(in.Schema))
	if err != nil {
		return nil, err
	}
	result.Append = appendRows
	stats.AppendRows = appendRows.Len()

	result.Metadata.EndTime = time.Now()
	result.Metadata.Duration = result.Metadata.EndTime.Sub(result.Metadata.StartTime)

	logger.Debug().
		Int("incoming_rows", stats.IncomingRows).
		Int("reference_rows", stats.ReferenceRows).
		Int("matched_rows", stats.MatchedRows).
		Int("dropped_empty", stats.DroppedEmpty).
		Int("append_rows", stats.AppendRows).
		Dur("duration", result.Metadata.Duration).
		Msg("Reconciliation complete")

	return result, nil
}
