// Package engine provides the projection build engine.
// It validates build configs, resolves transform chains, evaluates
// projections and dispatches plugins, running independent projections
// concurrently.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/leapstack-labs/leapbuild/internal/dag"
	"github.com/leapstack-labs/leapbuild/internal/manifest"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

const tracerName = "github.com/leapstack-labs/leapbuild/internal/engine"

// Engine builds the projections of a single build config.
// It is safe to call Run repeatedly; no state is kept between runs.
type Engine struct {
	config *core.BuildConfig
	chains map[string][]TransformBinding
	graph  *dag.Graph[core.ProjectionConfig]

	model        *core.Model
	assembler    core.Assembler
	transformers core.TransformerLookup
	plugins      core.PluginLookup
	manifests    core.ManifestFactory
	modelXform   *core.ModelTransformer

	outputDir   string
	parallelism int

	// Structured logger
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *buildMetrics
}

// Config holds engine configuration.
type Config struct {
	// Build is the raw build config. It is validated and normalized by New.
	Build *core.BuildConfig
	// Model is the initial model. Sources and global imports are merged
	// into it. Nil starts from an empty model.
	Model *core.Model
	// Assembler merges imports and validates models.
	Assembler core.Assembler
	// Transformers resolves transform names (optional).
	Transformers core.TransformerLookup
	// Plugins resolves plugin names (optional).
	Plugins core.PluginLookup
	// ManifestFactory creates plugin manifests. Defaults to file manifests on
	// the OS filesystem.
	ManifestFactory core.ManifestFactory
	// Parallelism bounds concurrently built projections. Defaults to
	// GOMAXPROCS.
	Parallelism int
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// TracerProvider provides the tracer for build spans (optional, uses the
	// global provider if nil)
	TracerProvider trace.TracerProvider
	// MeterProvider provides build metrics (optional, uses the global
	// provider if nil)
	MeterProvider metric.MeterProvider
}

// New validates the build config, resolves every transform chain and checks
// the apply graph. Any error is fatal: nothing is built from an invalid
// config.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Build == nil {
		return nil, errors.New("build config is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("assembler is required")
	}

	build, err := PrepareConfig(cfg.Build)
	if err != nil {
		return nil, err
	}

	transformers := cfg.Transformers
	if transformers == nil {
		transformers = func(string) (core.Transformer, bool) { return nil, false }
	}
	plugins := cfg.Plugins
	if plugins == nil {
		plugins = func(string) (core.Plugin, bool) { return nil, false }
	}

	chains, err := ResolveTransforms(build, transformers)
	if err != nil {
		return nil, err
	}

	graph, err := ApplyGraph(build)
	if err != nil {
		return nil, err
	}

	manifests := cfg.ManifestFactory
	if manifests == nil {
		manifests = manifest.NewFactory(afero.NewOsFs())
	}

	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	outputDir := build.OutputDirectory
	if outputDir == "" {
		outputDir = filepath.FromSlash(core.DefaultOutputDirectory)
	}

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	metrics, err := newBuildMetrics(mp.Meter(tracerName))
	if err != nil {
		return nil, err
	}

	logger.Debug("initialized engine",
		"projections", len(build.Projections),
		"output_directory", outputDir,
		"parallelism", parallelism)

	return &Engine{
		config:       build,
		chains:       chains,
		graph:        graph,
		model:        cfg.Model,
		assembler:    cfg.Assembler,
		transformers: transformers,
		plugins:      plugins,
		manifests:    manifests,
		modelXform:   core.NewModelTransformer(),
		outputDir:    outputDir,
		parallelism:  parallelism,
		logger:       logger,
		tracer:       tp.Tracer(tracerName),
		metrics:      metrics,
	}, nil
}

// Config returns the normalized build config.
func (e *Engine) Config() *core.BuildConfig {
	return e.config.Clone()
}

// Graph returns the projection apply graph. An edge from A to B means B
// applies A.
func (e *Engine) Graph() *dag.Graph[core.ProjectionConfig] {
	return e.graph
}

// OutputDirectory returns the root directory of projection outputs.
func (e *Engine) OutputDirectory() string {
	return e.outputDir
}

// TransformNames returns the names of the resolved transforms of a
// projection in execution order.
func (e *Engine) TransformNames(projection string) ([]string, error) {
	chain, ok := e.chains[projection]
	if !ok {
		return nil, fmt.Errorf("projection not found: %s", projection)
	}
	names := make([]string, len(chain))
	for i, b := range chain {
		names[i] = b.Transformer.Name()
	}
	return names, nil
}

// Serial reports whether a projection must be built serially. A projection
// is serial when any of its effective plugins is registered and serial.
func (e *Engine) Serial(projection string) bool {
	p, ok := e.config.Projections[projection]
	if !ok {
		return false
	}
	for name := range resolvePlugins(e.config.Plugins, p.Plugins) {
		if plugin, ok := e.plugins(name); ok && plugin.Serial() {
			return true
		}
	}
	return false
}
