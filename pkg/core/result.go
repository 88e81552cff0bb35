package core

import (
	"maps"
	"slices"
)

// ProjectionResult is the outcome of building one projection. It is
// immutable once constructed.
type ProjectionResult struct {
	name      string
	model     *Model
	events    []ValidationEvent
	manifests map[string]Manifest
}

// NewProjectionResult creates a result. model may be nil when the projection
// could not be assembled.
func NewProjectionResult(name string, model *Model, events []ValidationEvent, manifests map[string]Manifest) *ProjectionResult {
	return &ProjectionResult{
		name:      name,
		model:     model,
		events:    slices.Clone(events),
		manifests: maps.Clone(manifests),
	}
}

// ProjectionName returns the projection the result belongs to.
func (r *ProjectionResult) ProjectionName() string {
	return r.name
}

// Model returns the projected model, if one was produced.
func (r *ProjectionResult) Model() (*Model, bool) {
	return r.model, r.model != nil
}

// Events returns the validation events of the projected model.
func (r *ProjectionResult) Events() []ValidationEvent {
	return slices.Clone(r.events)
}

// Broken reports whether the projected model failed validation.
func (r *ProjectionResult) Broken() bool {
	return r.model == nil || ContainsErrors(r.events)
}

// PluginManifest returns the manifest written by the named plugin.
func (r *ProjectionResult) PluginManifest(name string) (Manifest, bool) {
	m, ok := r.manifests[name]
	return m, ok
}

// PluginManifests returns a copy of the plugin name to manifest map.
func (r *ProjectionResult) PluginManifests() map[string]Manifest {
	return maps.Clone(r.manifests)
}

// PluginNames returns the names of plugins that ran, sorted.
func (r *ProjectionResult) PluginNames() []string {
	names := slices.Collect(maps.Keys(r.manifests))
	slices.Sort(names)
	return names
}
