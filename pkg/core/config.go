package core

import (
	"maps"
	"slices"
)

const (
	// SourceProjection is the reserved projection that always exists and
	// never declares transforms.
	SourceProjection = "source"

	// ApplyTransform is the transform that grafts the transform chains of
	// other projections onto the current one.
	ApplyTransform = "apply"

	// DefaultOutputDirectory is used when a config names no output directory.
	DefaultOutputDirectory = "build/leapbuild"
)

// BuildConfig is the declarative build configuration.
type BuildConfig struct {
	Version string `koanf:"version" json:"version"`
	// OutputDirectory is the root of all projection outputs.
	OutputDirectory string `koanf:"output_directory" json:"output_directory,omitempty"`
	// Sources are model files or directories that form the base model.
	Sources []string `koanf:"sources" json:"sources,omitempty"`
	// Imports are merged into the base model before any projection runs.
	Imports     []string                    `koanf:"imports" json:"imports,omitempty"`
	Projections map[string]ProjectionConfig `koanf:"projections" json:"projections"`
	// ProjectionOrder is the declaration order of Projections.
	ProjectionOrder []string            `koanf:"-" json:"-"`
	Plugins         map[string]Settings `koanf:"plugins" json:"plugins,omitempty"`
}

// ProjectionConfig configures a single projection.
type ProjectionConfig struct {
	// Abstract projections are never built directly; they only exist to be
	// referenced by apply.
	Abstract   bool                `koanf:"abstract" json:"abstract,omitempty"`
	Imports    []string            `koanf:"imports" json:"imports,omitempty"`
	Transforms []TransformConfig   `koanf:"transforms" json:"transforms,omitempty"`
	Plugins    map[string]Settings `koanf:"plugins" json:"plugins,omitempty"`
}

// TransformConfig names a transform and its arguments.
type TransformConfig struct {
	Name string   `koanf:"name" json:"name"`
	Args Settings `koanf:"args" json:"args,omitempty"`
}

// OrderedProjectionNames returns projection names in declaration order.
// Names missing from ProjectionOrder follow in lexicographic order.
func (c *BuildConfig) OrderedProjectionNames() []string {
	seen := make(map[string]struct{}, len(c.Projections))
	names := make([]string, 0, len(c.Projections))
	for _, name := range c.ProjectionOrder {
		if _, ok := c.Projections[name]; !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	var rest []string
	for name := range c.Projections {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// Clone returns a copy that shares no maps or slices with c.
func (c *BuildConfig) Clone() *BuildConfig {
	out := &BuildConfig{
		Version:         c.Version,
		OutputDirectory: c.OutputDirectory,
		Sources:         slices.Clone(c.Sources),
		Imports:         slices.Clone(c.Imports),
		ProjectionOrder: slices.Clone(c.ProjectionOrder),
		Projections:     make(map[string]ProjectionConfig, len(c.Projections)),
		Plugins:         clonePlugins(c.Plugins),
	}
	for name, p := range c.Projections {
		out.Projections[name] = p.Clone()
	}
	return out
}

// Clone returns a copy that shares no maps or slices with p.
func (p ProjectionConfig) Clone() ProjectionConfig {
	out := ProjectionConfig{
		Abstract: p.Abstract,
		Imports:  slices.Clone(p.Imports),
		Plugins:  clonePlugins(p.Plugins),
	}
	if p.Transforms != nil {
		out.Transforms = make([]TransformConfig, len(p.Transforms))
		for i, t := range p.Transforms {
			out.Transforms[i] = TransformConfig{Name: t.Name, Args: t.Args.Clone()}
		}
	}
	return out
}

func clonePlugins(in map[string]Settings) map[string]Settings {
	out := make(map[string]Settings, len(in))
	for name, s := range in {
		out[name] = maps.Clone(s)
	}
	return out
}
