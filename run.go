package pubmap

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/reconciler"
	"github.com/agentstation/pubmap/pkg/sources"
	"github.com/agentstation/pubmap/pkg/table"
	"github.com/agentstation/pubmap/pkg/worksheet"
)

// Result describes one run.
type Result struct {
	RunID       string    `json:"run_id"`
	DatasetID   string    `json:"dataset_id,omitempty"`
	DatasetName string    `json:"dataset_name,omitempty"`
	NoDataset   bool      `json:"no_dataset"`
	Skipped     bool      `json:"skipped"`
	DryRun      bool      `json:"dry_run"`
	Appended    int       `json:"appended"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`

	// Reconciliation is nil unless the dataset was reconciled.
	Reconciliation *reconciler.Result `json:"-"`
}

// Processed reports whether the run reconciled a dataset.
func (r *Result) Processed() bool {
	return r.Reconciliation != nil
}

// Stats returns the reconciliation counts, or zeroes if nothing was reconciled.
func (r *Result) Stats() reconciler.ResultStatistics {
	if r.Reconciliation == nil {
		return reconciler.ResultStatistics{}
	}
	return r.Reconciliation.Metadata.Stats
}

// snapshot is everything a run reads from the spreadsheet.
type snapshot struct {
	reference *table.Table
	schema    []string
	refSheet  worksheet.Worksheet
	target    worksheet.Worksheet
}

// Run performs one pipeline run: fetch the newest dataset, skip it if it was
// already published, snapshot both tabs, reconcile, rewrite the reference tab
// and append the new rows. Nothing is written when any step before the writes
// fails.
func (c *client) Run(ctx context.Context) (*Result, error) {
	if c.options.logger != nil && logging.FromContext(ctx) == logging.Default() {
		ctx = logging.WithLogger(ctx, c.options.logger)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	result := &Result{
		RunID:     id.String(),
		DryRun:    c.options.dryRun,
		StartTime: time.Now(),
	}
	ctx = logging.WithRunID(ctx, result.RunID)

	err = c.run(ctx, result)
	result.EndTime = time.Now()
	if err != nil {
		c.hooks.triggerFailed(err)
		return nil, err
	}

	c.hooks.triggerCompleted(result)
	return result, nil
}

func (c *client) run(ctx context.Context, result *Result) error {
	logger := logging.FromContext(ctx)

	// Step 1: Fetch the newest dataset
	logger.Debug().Str("source", c.options.source.ID().String()).Msg("Fetching dataset")
	ds, err := c.options.source.Fetch(ctx)
	if stderrors.Is(err, sources.ErrNoDataset) {
		result.NoDataset = true
		logger.Info().Msg("No new dataset found")
		return nil
	}
	if err != nil {
		return err
	}
	result.DatasetID = ds.ID
	result.DatasetName = ds.Name

	// Step 2: Skip datasets that were already published
	if ds.ID == c.LastProcessed() {
		result.Skipped = true
		logger.Info().Str("dataset", ds.ID).Msg("Dataset already processed, skipping")
		return nil
	}
	ctx = logging.WithDataset(ctx, ds.ID)
	logger = logging.FromContext(ctx)
	logger.Info().Str("file", ds.Name).Int("rows", ds.Table.Len()).Msg("Processing dataset")

	// Step 3: Read both tabs
	snap, err := c.snapshot(ctx)
	if err != nil {
		return err
	}

	// Step 4: Compute the writes
	rec, err := c.rec.Reconcile(ctx, reconciler.Input{
		Incoming:  ds.Table,
		Reference: snap.reference,
		Schema:    snap.schema,
	})
	if err != nil {
		return err
	}
	result.Reconciliation = rec
	logger.Info().
		Int("reference_rows", rec.Metadata.Stats.ReferenceRows).
		Int("duplicate_id_rows", rec.Metadata.Stats.DuplicateIDRows).
		Int("append_rows", rec.Metadata.Stats.AppendRows).
		Msg(rec.Summary())

	if c.options.dryRun {
		logger.Info().Bool("dry_run", true).Msg("Dry run completed - nothing written")
		return nil
	}

	// Step 5: Write back the cleaned reference tab
	if err := snap.refSheet.Replace(ctx, rec.Reference); err != nil {
		return err
	}
	logger.Info().
		Str("worksheet", snap.refSheet.Title()).
		Int("rows", rec.Reference.Len()).
		Msg("Reference worksheet updated")

	// Step 6: Publish
	if rec.HasAppend() {
		rows := rec.Append.Values()
		if err := snap.target.Append(ctx, rows); err != nil {
			return err
		}
		result.Appended = len(rows)
		logger.Info().
			Str("worksheet", snap.target.Title()).
			Int("rows", len(rows)).
			Msg("Rows appended")
	} else {
		logger.Info().Msg("Nothing to append")
	}

	// Step 7: Remember the dataset only once everything is written
	c.markProcessed(ds.ID)
	return nil
}

// snapshot opens both tabs and reads them concurrently.
func (c *client) snapshot(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ws, err := c.options.document.Worksheet(gctx, c.options.referenceSheet)
		if err != nil {
			return err
		}
		t, err := ws.Read(gctx)
		if err != nil {
			return err
		}
		snap.refSheet, snap.reference = ws, t
		return nil
	})

	g.Go(func() error {
		ws, err := c.options.document.Worksheet(gctx, c.options.targetSheet)
		if err != nil {
			return err
		}
		header, err := ws.Header(gctx)
		if err != nil {
			return err
		}
		snap.target, snap.schema = ws, header
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}
