package engine

// run.go - Scheduling of projection builds

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/leapbuild/internal/workpool"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// RunOptions selects what a run builds. Nil filters admit everything.
type RunOptions struct {
	// ProjectionFilter admits projections by name.
	ProjectionFilter func(name string) bool
	// PluginFilter admits plugins by name.
	PluginFilter func(name string) bool
}

func (o RunOptions) admitProjection(name string) bool {
	return o.ProjectionFilter == nil || o.ProjectionFilter(name)
}

func (o RunOptions) admitPlugin(name string) bool {
	return o.PluginFilter == nil || o.PluginFilter(name)
}

// Run builds every selected, non-abstract projection. Projections with a
// serial plugin are built first, one at a time, in config order; the rest
// are then built concurrently.
//
// Each projection is reported exactly once, through onResult or through
// onFailure with its name. Callbacks are invoked on the calling goroutine,
// never concurrently, and a panic in onResult is not reported to onFailure.
//
// Run returns an error only for run-level failures: the base model cannot be
// assembled (*core.BuildError), or ctx is done while waiting for concurrent
// projections (*core.BuildError wrapping ctx.Err()). Projections already
// started keep running in that case; their outcomes are not reported.
func (e *Engine) Run(ctx context.Context, opts RunOptions, onResult func(*core.ProjectionResult), onFailure func(string, error)) error {
	ctx, span := e.tracer.Start(ctx, "leapbuild.run")
	defer span.End()

	start := time.Now()
	base, err := e.baseModel(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var serial, parallel []string
	for _, name := range e.config.ProjectionOrder {
		p := e.config.Projections[name]
		if p.Abstract {
			e.logger.Debug("skipping abstract projection", "projection", name)
			continue
		}
		if !opts.admitProjection(name) {
			e.logger.Debug("skipping filtered projection", "projection", name)
			continue
		}
		if e.Serial(name) {
			serial = append(serial, name)
		} else {
			parallel = append(parallel, name)
		}
	}

	span.SetAttributes(
		attribute.Int("leapbuild.serial_projections", len(serial)),
		attribute.Int("leapbuild.parallel_projections", len(parallel)),
	)
	e.logger.Info("starting build", "serial", len(serial), "parallel", len(parallel))

	for _, name := range serial {
		e.deliver(name, e.buildOutcome(ctx, base, name, opts), onResult, onFailure)
	}

	switch len(parallel) {
	case 0:
	case 1:
		e.deliver(parallel[0], e.buildOutcome(ctx, base, parallel[0], opts), onResult, onFailure)
	default:
		tasks := make([]workpool.Task[*core.ProjectionResult], len(parallel))
		for i, name := range parallel {
			tasks[i] = func() (*core.ProjectionResult, error) {
				return e.buildProjection(ctx, base, name, opts)
			}
		}

		results, err := workpool.Invoke(ctx, e.parallelism, tasks)
		if err != nil {
			buildErr := &core.BuildError{Message: "interrupted while waiting for projections to complete", Err: err}
			span.RecordError(buildErr)
			span.SetStatus(codes.Error, buildErr.Error())
			return buildErr
		}
		for i, r := range results {
			e.deliver(parallel[i], outcome{result: r.Value, err: r.Err}, onResult, onFailure)
		}
	}

	e.logger.Info("build finished", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

type outcome struct {
	result *core.ProjectionResult
	err    error
}

func (e *Engine) buildOutcome(ctx context.Context, base *core.Model, name string, opts RunOptions) outcome {
	r, err := e.buildProjection(ctx, base, name, opts)
	return outcome{result: r, err: err}
}

// deliver reports an outcome. onResult is called outside of any recovery so
// its panics reach the caller of Run.
func (e *Engine) deliver(name string, o outcome, onResult func(*core.ProjectionResult), onFailure func(string, error)) {
	if o.err != nil {
		e.logger.Error("projection failed", "projection", name, "error", o.err)
		onFailure(name, o.err)
		return
	}
	onResult(o.result)
}

// buildProjection evaluates and dispatches a single projection.
func (e *Engine) buildProjection(ctx context.Context, base *core.Model, name string, opts RunOptions) (result *core.ProjectionResult, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "leapbuild.projection",
		trace.WithAttributes(attribute.String("leapbuild.projection", name)))
	defer func() {
		status := resultSuccess
		switch {
		case err != nil:
			status = resultFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result.Broken():
			status = resultBroken
		}
		e.metrics.record(ctx, status, time.Since(start))
		span.End()
	}()

	e.logger.Debug("creating projection", "projection", name)
	p := e.config.Projections[name]

	err = safely(func() error {
		ev, err := e.evaluateProjection(ctx, base, name, p)
		if err != nil {
			return err
		}
		if ev.model == nil {
			result = core.NewProjectionResult(name, nil, ev.events, nil)
			return nil
		}

		manifests, err := e.dispatchPlugins(ctx, ev, name, p, opts.admitPlugin)
		if err != nil {
			return err
		}
		result = core.NewProjectionResult(name, ev.model, ev.events, manifests)
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("leapbuild.broken", result.Broken()),
		attribute.Int("leapbuild.events", len(result.Events())),
	)
	return result, nil
}

// baseModel merges sources and global imports into the initial model.
func (e *Engine) baseModel(ctx context.Context) (*core.Model, error) {
	paths := make([]string, 0, len(e.config.Sources)+len(e.config.Imports))
	paths = append(paths, e.config.Sources...)
	paths = append(paths, e.config.Imports...)

	initial := e.model
	if initial == nil {
		initial = core.NewModel()
	}
	if len(paths) == 0 {
		return initial, nil
	}

	e.logger.Debug("assembling base model", "sources", e.config.Sources, "imports", e.config.Imports)
	assembled := e.assembler.Assemble(ctx, initial, paths)
	if assembled.Model == nil || assembled.Broken() {
		return nil, &core.BuildError{
			Message: "unable to assemble the base model",
			Err:     eventsError(assembled.Events),
		}
	}
	return assembled.Model, nil
}

func eventsError(events []core.ValidationEvent) error {
	var errs []error
	for _, ev := range events {
		if ev.Severity == core.SeverityError {
			errs = append(errs, errors.New(ev.String()))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Reports
// =============================================================================

// ProjectionFailure is a projection that could not be built.
type ProjectionFailure struct {
	Projection string
	Err        error
}

// BuildReport collects the outcome of a run.
type BuildReport struct {
	// Results are the built projections, sorted by name.
	Results []*core.ProjectionResult
	// Failures are the failed projections, sorted by name.
	Failures []ProjectionFailure
	Duration time.Duration
}

// Failed reports whether any projection failed.
func (r *BuildReport) Failed() bool {
	return len(r.Failures) > 0
}

// Broken reports whether any built projection has a broken model.
func (r *BuildReport) Broken() bool {
	for _, res := range r.Results {
		if res.Broken() {
			return true
		}
	}
	return false
}

// Err joins every projection failure, or returns nil.
func (r *BuildReport) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = fmt.Errorf("projection %s: %w", f.Projection, f.Err)
	}
	return errors.Join(errs...)
}

// RunAll runs the build and collects every outcome into a report.
func (e *Engine) RunAll(ctx context.Context, opts RunOptions) (*BuildReport, error) {
	start := time.Now()
	report := &BuildReport{}

	err := e.Run(ctx, opts,
		func(r *core.ProjectionResult) {
			report.Results = append(report.Results, r)
		},
		func(name string, err error) {
			report.Failures = append(report.Failures, ProjectionFailure{Projection: name, Err: err})
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].ProjectionName() < report.Results[j].ProjectionName()
	})
	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Projection < report.Failures[j].Projection
	})
	report.Duration = time.Since(start)
	return report, nil
}
