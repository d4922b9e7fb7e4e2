package app

import (
	"context"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/pubmap"
	"github.com/agentstation/pubmap/internal/attachment"
	"github.com/agentstation/pubmap/internal/cmd/output"
	"github.com/agentstation/pubmap/internal/server"
	"github.com/agentstation/pubmap/internal/sources/local"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/logging"
	"github.com/agentstation/pubmap/pkg/schedule"
	"github.com/agentstation/pubmap/pkg/worksheet"
	"github.com/agentstation/pubmap/pkg/worksheet/memory"
)

// Tab names used by the offline reconcile command.
const (
	offlineReference = "reference"
	offlineTarget    = "target"
)

// NewRunCommand creates the run command: the scheduler loop.
func (a *App) NewRunCommand() *cobra.Command {
	var now bool
	cmd := &cobra.Command{
		Use:     "run",
		GroupID: "core",
		Short:   "Run the pipeline on its daily schedule",
		Long: `Run waits for the daily slot (RUN_HOUR:RUN_MINUTE), checks the mailbox for
a new report and publishes it. After a run it checks again every
POLL_INTERVAL; after a failure it retries every RETRY_BACKOFF.

When STATUS_ADDR is set, a read-only status endpoint is served on it.
The loop stops on SIGINT or SIGTERM once any run in progress has finished.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if now {
				a.config.RunImmediately = true
			}
			return a.runScheduled(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "check immediately instead of waiting for the daily slot")
	return cmd
}

func (a *App) runScheduled(ctx context.Context) error {
	if err := a.config.Validate(Needs{Mail: a.source == nil, Document: true}); err != nil {
		return err
	}
	schedCfg, err := a.ScheduleConfig()
	if err != nil {
		return err
	}
	ctx = logging.WithLogger(ctx, a.logger)

	client, err := a.newClient(ctx, "")
	if err != nil {
		return err
	}
	defer a.close(client)

	var opts []schedule.Option
	if a.sleep != nil {
		opts = append(opts, schedule.WithSleep(a.sleep))
	}
	sched := client.Schedule(schedCfg, opts...)

	g, gctx := errgroup.WithContext(ctx)
	if a.config.StatusAddr != "" {
		srv, err := server.New(server.Config{Addr: a.config.StatusAddr}, server.NewTracker(client, sched), a.logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error { return sched.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		a.logger.Info().Int64("runs", sched.Runs()).Msg("Scheduler stopped")
		return nil
	}
	return err
}

// NewOnceCommand creates the once command: a single run.
func (a *App) NewOnceCommand() *cobra.Command {
	var (
		file   string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:     "once",
		GroupID: "core",
		Short:   "Run the pipeline once",
		Long: `Once performs a single run and prints what it did. With --file the dataset
is read from a local CSV or XLSX file (or the newest one in a directory)
instead of the mailbox. With --dry-run nothing is written.`,
		Example: `  pubmap once
  pubmap once --file report.csv --dry-run -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runOnce(cmd.Context(), file, dryRun)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the dataset from a local file or directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "reconcile and report without writing")
	return cmd
}

func (a *App) runOnce(ctx context.Context, file string, dryRun bool) error {
	if err := a.config.Validate(Needs{Mail: file == "" && a.source == nil, Document: true}); err != nil {
		return err
	}
	ctx = logging.WithLogger(ctx, a.logger)

	client, err := a.newClient(ctx, file, pubmap.WithDryRun(dryRun))
	if err != nil {
		return err
	}
	defer a.close(client)

	result, err := client.Run(ctx)
	if err != nil {
		return err
	}
	return a.print(newRunSummary(result))
}

// NewReconcileCommand creates the offline reconcile command.
func (a *App) NewReconcileCommand() *cobra.Command {
	var (
		reference string
		incoming  string
		target    string
		schema    []string
		cleaned   bool
	)
	cmd := &cobra.Command{
		Use:     "reconcile",
		GroupID: "core",
		Short:   "Reconcile local files without touching the spreadsheet",
		Long: `Reconcile computes a run from local files: the reference tab exported as CSV
or XLSX, an incoming report, and the append tab's header (from --target or
--schema). It prints the rows that would be appended, or with --cleaned the
deduplicated reference.`,
		Example: `  pubmap reconcile --reference ref.csv --incoming report.xlsx --schema "Publication_ID,Bundle_ID,Domain"
  pubmap reconcile --reference ref.csv --incoming report.csv --target mapping.csv -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.reconcile(cmd.Context(), reference, incoming, target, schema, cleaned)
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "reference tab as a CSV or XLSX file")
	cmd.Flags().StringVar(&incoming, "incoming", "", "incoming report as a CSV or XLSX file")
	cmd.Flags().StringVar(&target, "target", "", "file whose header is the append tab's schema")
	cmd.Flags().StringSliceVar(&schema, "schema", nil, "append tab columns, comma separated")
	cmd.Flags().BoolVar(&cleaned, "cleaned", false, "print the cleaned reference instead of the rows to append")
	cmd.MarkFlagsMutuallyExclusive("target", "schema")
	cmd.MarkFlagsOneRequired("target", "schema")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("incoming")
	return cmd
}

func (a *App) reconcile(ctx context.Context, reference, incoming, target string, schema []string, cleaned bool) error {
	ref, err := attachment.ParseFile(reference)
	if err != nil {
		return err
	}
	if target != "" {
		t, err := attachment.ParseFile(target)
		if err != nil {
			return err
		}
		schema = t.Columns
	}
	schema = trimAll(schema)
	if len(schema) == 0 {
		return errors.NewValidationError("schema", schema, "append tab schema is empty")
	}

	doc := memory.New()
	doc.AddSheet(offlineReference, worksheet.ToValues(ref))
	doc.AddSheet(offlineTarget, [][]string{schema})

	client, err := a.Client(local.New(incoming), doc,
		pubmap.WithReferenceSheet(offlineReference),
		pubmap.WithTargetSheet(offlineTarget),
		pubmap.WithDryRun(true),
	)
	if err != nil {
		return err
	}
	defer a.close(client)

	result, err := client.Run(logging.WithLogger(ctx, a.logger))
	if err != nil {
		return err
	}
	if !result.Processed() {
		return errors.NewValidationError("incoming", incoming, "no dataset found")
	}

	out := result.Reconciliation.Append
	if cleaned {
		out = result.Reconciliation.Reference
	}
	return a.print(out)
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("pubmap %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}

// newClient builds a client over the configured source and document.
func (a *App) newClient(ctx context.Context, file string, opts ...pubmap.Option) (pubmap.Client, error) {
	src, err := a.Source(file)
	if err != nil {
		return nil, err
	}
	doc, err := a.Document(ctx)
	if err != nil {
		return nil, err
	}
	return a.Client(src, doc, opts...)
}

func (a *App) close(client pubmap.Client) {
	if err := client.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to clean up source")
	}
}

func (a *App) print(data any) error {
	formatter := output.NewFormatter(output.DetectFormat(a.config.Output))
	return formatter.Format(a.stdout, data)
}

// runSummary is what once prints.
type runSummary struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Status   string `json:"status" yaml:"status"`
	Dataset  string `json:"dataset,omitempty" yaml:"dataset,omitempty"`
	Appended int    `json:"appended" yaml:"appended"`
	Summary  string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

func newRunSummary(r *pubmap.Result) runSummary {
	s := runSummary{
		RunID:    r.RunID,
		Dataset:  r.DatasetName,
		Appended: r.Appended,
	}
	switch {
	case r.NoDataset:
		s.Status = "no dataset"
	case r.Skipped:
		s.Status = "skipped"
	case r.DryRun:
		s.Status = "dry run"
	default:
		s.Status = "published"
	}
	if r.Reconciliation != nil {
		s.Summary = r.Reconciliation.Summary()
	}
	return s
}

func trimAll(cols []string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
