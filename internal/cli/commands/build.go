package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/engine"
	"github.com/leapstack-labs/leapbuild/internal/state"
	"github.com/leapstack-labs/leapbuild/internal/telemetry"
	"github.com/leapstack-labs/leapbuild/internal/watch"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// ErrBuildFailed is returned when any projection failed or is broken.
var ErrBuildFailed = errors.New("build failed")

type buildOptions struct {
	projections  []string
	plugins      []string
	parallelism  int
	watch        bool
	trace        string
	otlpEndpoint string
	json         bool
	noHistory    bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build projections",
		Long: `Build every non-abstract projection of the build config.

Projections with a serial plugin are built first, one at a time. All other
projections are built concurrently. Each plugin writes its output to
<output_directory>/<projection>/<plugin>.

The command exits with an error if any projection failed or produced a
model with validation errors.`,
		Example: `  # Build all projections
  leapbuild build

  # Build a single projection with only the model plugin
  leapbuild build -p external --plugin model

  # Rebuild whenever a model or the config changes
  leapbuild build --watch

  # Print spans and metrics to stderr
  leapbuild build --trace`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.projections, "projection", "p", nil, "Only build the named projections")
	cmd.Flags().StringSliceVar(&opts.plugins, "plugin", nil, "Only run the named plugins")
	cmd.Flags().String("output", "", "Output directory (overrides output_directory)")
	cmd.Flags().IntVar(&opts.parallelism, "parallelism", 0, "Maximum projections built concurrently (default: number of CPUs)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Rebuild when model or config files change")
	cmd.Flags().StringVar(&opts.trace, "trace", "", "Export build traces and metrics (stdout|otlp)")
	cmd.Flags().Lookup("trace").NoOptDefVal = telemetry.ExporterStdout
	cmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "http://localhost:4318", "OTLP/HTTP endpoint used with --trace=otlp")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the build summary as JSON")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "Do not record the build in the history database")

	_ = cmd.RegisterFlagCompletionFunc("trace", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{telemetry.ExporterStdout, telemetry.ExporterOTLP}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runBuild(cmd *cobra.Command, opts *buildOptions) error {
	ctx := cmd.Context()
	logger := GetLogger(ctx)

	if opts.trace != "" {
		shutdown, err := initTelemetry(ctx, opts, cmd)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	cmdCtx, err := buildOnce(ctx, cmd, opts)
	if !opts.watch {
		return err
	}
	if cmdCtx == nil {
		// The config could not be loaded, so there is nothing to watch.
		return err
	}
	if err != nil {
		logger.Error("build failed", "error", err)
	}

	w := watch.New(watchPaths(cmdCtx),
		watch.WithExclude(cmdCtx.Engine.OutputDirectory()),
		watch.WithLogger(logger))
	return w.Run(ctx, func(ctx context.Context) {
		if _, err := buildOnce(ctx, cmd, opts); err != nil {
			logger.Error("build failed", "error", err)
		}
	})
}

// buildOnce loads the config and runs one build. The command context is
// returned whenever the config loaded, even if the build failed.
func buildOnce(ctx context.Context, cmd *cobra.Command, opts *buildOptions) (*CommandContext, error) {
	cmdCtx, err := NewCommandContext(cmd, EngineOptions{Parallelism: opts.parallelism})
	if err != nil {
		return nil, err
	}

	runOpts, err := runOptions(cmdCtx.Engine, opts)
	if err != nil {
		return cmdCtx, err
	}

	var (
		store *state.SQLiteStore
		run   *state.Run
	)
	if !opts.noHistory {
		store, run, err = startRun(ctx, cmdCtx)
		if err != nil {
			cmdCtx.Logger.Warn("build history unavailable", "error", err)
		} else {
			defer func() { _ = store.Close() }()
		}
	}

	report, runErr := cmdCtx.Engine.RunAll(ctx, runOpts)

	if store != nil {
		recordRun(ctx, cmdCtx, store, run, report, runErr)
	}
	if runErr != nil {
		return cmdCtx, runErr
	}

	if opts.json {
		if err := cmdCtx.Renderer.JSON(summarize(report)); err != nil {
			return cmdCtx, err
		}
	} else {
		renderReport(cmdCtx, report)
	}

	return cmdCtx, reportError(report)
}

// runOptions turns the projection and plugin flags into engine filters.
func runOptions(eng *engine.Engine, opts *buildOptions) (engine.RunOptions, error) {
	var runOpts engine.RunOptions

	if len(opts.projections) > 0 {
		cfg := eng.Config()
		for _, name := range opts.projections {
			p, ok := cfg.Projections[name]
			if !ok {
				return runOpts, fmt.Errorf("unknown projection: %s", name)
			}
			if p.Abstract {
				return runOpts, fmt.Errorf("cannot build abstract projection: %s", name)
			}
		}
		selected := slices.Clone(opts.projections)
		runOpts.ProjectionFilter = func(name string) bool { return slices.Contains(selected, name) }
	}

	if len(opts.plugins) > 0 {
		selected := slices.Clone(opts.plugins)
		runOpts.PluginFilter = func(name string) bool { return slices.Contains(selected, name) }
	}

	return runOpts, nil
}

func startRun(ctx context.Context, cmdCtx *CommandContext) (*state.SQLiteStore, *state.Run, error) {
	store, err := openState(ctx, cmdCtx.Engine.OutputDirectory(), cmdCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	run, err := store.CreateRun(ctx, cmdCtx.Loaded.File)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, run, nil
}

// recordRun stores the outcome of a build. History is best effort: errors
// are logged, never returned.
func recordRun(ctx context.Context, cmdCtx *CommandContext, store *state.SQLiteStore, run *state.Run, report *engine.BuildReport, runErr error) {
	// Record even when the build was interrupted.
	ctx = context.WithoutCancel(ctx)
	logger := cmdCtx.Logger

	status := state.RunStatusCompleted
	errMsg := ""
	switch {
	case runErr != nil:
		status = state.RunStatusFailed
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			status = state.RunStatusInterrupted
		}
		errMsg = runErr.Error()
	case report.Failed() || report.Broken():
		status = state.RunStatusFailed
		if err := reportError(report); err != nil {
			errMsg = err.Error()
		}
	}

	if report != nil {
		for _, rec := range projectionRecords(run.ID, report) {
			if err := store.RecordProjection(ctx, rec); err != nil {
				logger.Warn("failed to record projection", "projection", rec.Projection, "error", err)
			}
		}
	}
	if err := store.CompleteRun(ctx, run.ID, status, errMsg); err != nil {
		logger.Warn("failed to complete run", "run_id", run.ID, "error", err)
	}
}

func projectionRecords(runID string, report *engine.BuildReport) []*state.ProjectionRecord {
	records := make([]*state.ProjectionRecord, 0, len(report.Results)+len(report.Failures))
	for _, r := range report.Results {
		s := summarizeResult(r)
		status := state.ProjectionStatusSuccess
		if s.Broken {
			status = state.ProjectionStatusBroken
		}
		records = append(records, &state.ProjectionRecord{
			RunID:      runID,
			Projection: s.Projection,
			Status:     status,
			Shapes:     s.Shapes,
			Errors:     s.Errors,
			Warnings:   s.Warnings,
			Plugins:    s.Plugins,
		})
	}
	for _, f := range report.Failures {
		records = append(records, &state.ProjectionRecord{
			RunID:      runID,
			Projection: f.Projection,
			Status:     state.ProjectionStatusFailed,
			Error:      f.Err.Error(),
		})
	}
	return records
}

// reportError returns ErrBuildFailed wrapped with every failure and broken
// projection, or nil for a clean build.
func reportError(report *engine.BuildReport) error {
	var broken []string
	for _, r := range report.Results {
		if r.Broken() {
			broken = append(broken, r.ProjectionName())
		}
	}
	if !report.Failed() && len(broken) == 0 {
		return nil
	}

	var parts []string
	if report.Failed() {
		parts = append(parts, fmt.Sprintf("%d projection(s) failed", len(report.Failures)))
	}
	if len(broken) > 0 {
		parts = append(parts, fmt.Sprintf("projection(s) with validation errors: %s", strings.Join(broken, ", ")))
	}
	err := fmt.Errorf("%w: %s", ErrBuildFailed, strings.Join(parts, "; "))
	if report.Failed() {
		err = errors.Join(err, report.Err())
	}
	return err
}

// =============================================================================
// Summary
// =============================================================================

// ProjectionSummary describes one projection of a build.
type ProjectionSummary struct {
	Projection string   `json:"projection"`
	Broken     bool     `json:"broken"`
	Failed     bool     `json:"failed,omitempty"`
	Error      string   `json:"error,omitempty"`
	Shapes     int      `json:"shapes"`
	Errors     int      `json:"errors"`
	Warnings   int      `json:"warnings"`
	Plugins    []string `json:"plugins"`
	Files      []string `json:"files,omitempty"`
}

// BuildSummary is the JSON form of a build report.
type BuildSummary struct {
	Projections []ProjectionSummary `json:"projections"`
	DurationMS  int64               `json:"duration_ms"`
	Failed      bool                `json:"failed"`
}

func summarize(report *engine.BuildReport) BuildSummary {
	out := BuildSummary{
		Projections: []ProjectionSummary{},
		DurationMS:  report.Duration.Milliseconds(),
		Failed:      report.Failed() || report.Broken(),
	}
	for _, r := range report.Results {
		out.Projections = append(out.Projections, summarizeResult(r))
	}
	for _, f := range report.Failures {
		out.Projections = append(out.Projections, ProjectionSummary{
			Projection: f.Projection,
			Failed:     true,
			Error:      f.Err.Error(),
			Plugins:    []string{},
		})
	}
	slices.SortFunc(out.Projections, func(a, b ProjectionSummary) int {
		return strings.Compare(a.Projection, b.Projection)
	})
	return out
}

func summarizeResult(r *core.ProjectionResult) ProjectionSummary {
	s := ProjectionSummary{
		Projection: r.ProjectionName(),
		Broken:     r.Broken(),
		Plugins:    r.PluginNames(),
	}
	if s.Plugins == nil {
		s.Plugins = []string{}
	}
	if m, ok := r.Model(); ok {
		s.Shapes = m.Len()
	}
	for _, ev := range r.Events() {
		switch ev.Severity {
		case core.SeverityError:
			s.Errors++
		case core.SeverityDanger, core.SeverityWarning:
			s.Warnings++
		}
	}
	for _, name := range s.Plugins {
		if m, ok := r.PluginManifest(name); ok {
			s.Files = append(s.Files, m.Files()...)
		}
	}
	return s
}

func renderReport(cmdCtx *CommandContext, report *engine.BuildReport) {
	r := cmdCtx.Renderer
	styles := r.Styles()
	summary := summarize(report)

	rows := make([][]string, 0, len(summary.Projections))
	for _, p := range summary.Projections {
		status := styles.Success.Render(styles.Check + " ok")
		switch {
		case p.Failed:
			status = styles.Error.Render(styles.Cross + " failed")
		case p.Broken:
			status = styles.Warning.Render(styles.WarnMark + " broken")
		}
		rows = append(rows, []string{
			p.Projection,
			status,
			fmt.Sprintf("%d", p.Shapes),
			fmt.Sprintf("%d/%d", p.Errors, p.Warnings),
			strings.Join(p.Plugins, ", "),
		})
	}
	r.Table([]string{"Projection", "Status", "Shapes", "Errors/Warnings", "Plugins"}, rows)

	for _, f := range report.Failures {
		r.Printf("%s %s: %v\n", styles.Error.Render(styles.Cross), f.Projection, firstLine(f.Err))
	}
	for _, res := range report.Results {
		for _, ev := range res.Events() {
			if ev.Severity == core.SeverityError {
				r.Printf("%s %s: %s\n", styles.Warning.Render(styles.WarnMark), res.ProjectionName(), ev.String())
			}
		}
	}

	r.Println(styles.Muted.Render(fmt.Sprintf("Built %d projection(s) into %s in %s",
		len(summary.Projections), cmdCtx.Engine.OutputDirectory(), report.Duration.Round(time.Millisecond))))
}

// firstLine trims recovered panic stacks from error output.
func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

// =============================================================================
// Watch & telemetry
// =============================================================================

// watchPaths returns the config file, sources and the static roots of all
// imports.
func watchPaths(cmdCtx *CommandContext) []string {
	cfg := cmdCtx.Engine.Config()
	var paths []string
	if cmdCtx.Loaded.File != "" {
		paths = append(paths, cmdCtx.Loaded.File)
	}
	paths = append(paths, cfg.Sources...)

	imports := slices.Clone(cfg.Imports)
	for _, p := range cfg.Projections {
		imports = append(imports, p.Imports...)
	}
	for _, imp := range imports {
		if !strings.ContainsAny(imp, "*?[{") {
			paths = append(paths, imp)
			continue
		}
		root, _ := doublestar.SplitPattern(filepath.ToSlash(imp))
		paths = append(paths, filepath.FromSlash(root))
	}

	slices.Sort(paths)
	return slices.Compact(paths)
}

func initTelemetry(ctx context.Context, opts *buildOptions, cmd *cobra.Command) (func(), error) {
	w := cmd.ErrOrStderr()
	tp, err := telemetry.InitTracer(ctx, opts.trace, opts.otlpEndpoint, w)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	mp, err := telemetry.InitMeter(ctx, opts.trace, opts.otlpEndpoint, w)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := errors.Join(tp.Shutdown(shutdownCtx), mp.Shutdown(shutdownCtx)); err != nil {
			GetLogger(ctx).Warn("failed to flush telemetry", "error", err)
		}
	}, nil
}
