package core

import (
	"context"
	"log/slog"
)

// =============================================================================
// Transforms
// =============================================================================

// Transformer rewrites a model. Implementations must not mutate the input
// model; they return a new one.
type Transformer interface {
	Name() string
	Transform(ctx context.Context, tc TransformContext) (*Model, error)
}

// TransformerLookup resolves a transformer by name.
type TransformerLookup func(name string) (Transformer, bool)

// TransformContext is the input of a single transform step. A new context is
// built for every step from the previous step's output model.
type TransformContext struct {
	// Model is the model flowing through the chain.
	Model *Model
	// OriginalModel is the model before the chain started.
	OriginalModel *Model
	// Transformer is the shared model rewriting service.
	Transformer *ModelTransformer
	// ProjectionName is the projection whose chain is executing.
	ProjectionName string
	// Sources are the model source paths of the build.
	Sources []string
	// Settings are the transform arguments.
	Settings Settings
	// Visited is the ordered chain of projections entered through apply.
	// It must be treated as read-only.
	Visited []string
}

// =============================================================================
// Plugins
// =============================================================================

// Plugin produces artifacts from a projected model.
type Plugin interface {
	Name() string
	Execute(ctx context.Context, pc *PluginContext) error
	// Serial reports whether projections using this plugin must not run
	// concurrently with other projections.
	Serial() bool
	// RequiresValidModel reports whether the plugin is skipped for broken
	// models.
	RequiresValidModel() bool
}

// PluginLookup resolves a plugin by name.
type PluginLookup func(name string) (Plugin, bool)

// Extensions gives plugins access to the registries the build was
// configured with.
type Extensions struct {
	Transformers TransformerLookup
	Plugins      PluginLookup
}

// PluginContext is the input of a single plugin invocation.
type PluginContext struct {
	Model          *Model
	OriginalModel  *Model
	ProjectionName string
	Projection     ProjectionConfig
	Events         []ValidationEvent
	Settings       Settings
	Manifest       Manifest
	Sources        []string
	Extensions     Extensions
	Logger         *slog.Logger
}

// =============================================================================
// Assembly
// =============================================================================

// ValidatedModel is the outcome of assembling a model.
type ValidatedModel struct {
	// Model is nil when the inputs could not be merged.
	Model  *Model
	Events []ValidationEvent
}

// Broken reports whether any event has error severity.
func (v ValidatedModel) Broken() bool {
	return ContainsErrors(v.Events)
}

// Assembler merges import paths into a model and validates the result.
// Passing no imports validates base alone.
type Assembler interface {
	Assemble(ctx context.Context, base *Model, imports []string) ValidatedModel
}

// =============================================================================
// Manifests
// =============================================================================

// Manifest scopes a plugin's file writes beneath a base directory and
// records what was written.
type Manifest interface {
	// BaseDir is the directory all paths are relative to.
	BaseDir() string
	// WriteFile writes data to a path relative to BaseDir and returns the
	// absolute path written.
	WriteFile(path string, data []byte) (string, error)
	// AddFile records a file created outside the manifest. Relative paths
	// are resolved against BaseDir.
	AddFile(path string) string
	// Files returns every recorded path, sorted.
	Files() []string
}

// ManifestFactory creates a manifest rooted at baseDir.
type ManifestFactory func(baseDir string) Manifest
