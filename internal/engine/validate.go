package engine

import (
	"regexp"
	"slices"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9\-_.]+$`)

const topLevel = "[top-level]"

// ValidName reports whether name is a valid projection, transform or plugin
// name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// PrepareConfig validates cfg and returns a normalized copy. The copy always
// contains a source projection, and its ProjectionOrder lists every
// projection exactly once. cfg is never modified.
func PrepareConfig(cfg *core.BuildConfig) (*core.BuildConfig, error) {
	out := cfg.Clone()

	if _, ok := out.Projections[core.SourceProjection]; !ok {
		out.Projections[core.SourceProjection] = core.ProjectionConfig{
			Plugins: map[string]core.Settings{},
		}
	}
	if len(out.Projections[core.SourceProjection].Transforms) > 0 {
		return nil, core.NewConfigError("the source projection cannot contain any transforms")
	}

	for name := range out.Plugins {
		if !ValidName(name) {
			return nil, core.NewConfigError("invalid plugin name `%s` found in the `%s` projection", name, topLevel)
		}
	}

	out.ProjectionOrder = out.OrderedProjectionNames()
	for _, projection := range out.ProjectionOrder {
		if !ValidName(projection) {
			return nil, core.NewConfigError("invalid projection name `%s`", projection)
		}
		p := out.Projections[projection]
		for _, plugin := range sortedKeys(p.Plugins) {
			if !ValidName(plugin) {
				return nil, core.NewConfigError("invalid plugin name `%s` found in the `%s` projection", plugin, projection)
			}
		}
		for _, t := range p.Transforms {
			if !ValidName(t.Name) {
				return nil, core.NewConfigError("invalid transform name `%s` found in the `%s` projection", t.Name, projection)
			}
		}
	}

	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
