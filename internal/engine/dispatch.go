package engine

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// resolvePlugins merges global and projection plugin settings. Projection
// entries replace global entries of the same name.
func resolvePlugins(global, local map[string]core.Settings) map[string]core.Settings {
	out := make(map[string]core.Settings, len(global)+len(local))
	maps.Copy(out, global)
	maps.Copy(out, local)
	return out
}

// dispatchPlugins runs the effective plugins of a projection in
// lexicographic name order and returns the manifest of every plugin that
// ran. Unregistered plugins and validity-gated plugins on broken models are
// skipped. The first plugin error aborts dispatch.
func (e *Engine) dispatchPlugins(ctx context.Context, ev *evaluation, name string, p core.ProjectionConfig, admit func(string) bool) (map[string]core.Manifest, error) {
	manifests := make(map[string]core.Manifest)
	effective := resolvePlugins(e.config.Plugins, p.Plugins)
	projectionDir := filepath.Join(e.outputDir, name)

	for _, pluginName := range sortedKeys(effective) {
		if !admit(pluginName) {
			continue
		}

		plugin, ok := e.plugins(pluginName)
		if !ok {
			e.logger.Info("unable to find plugin", "plugin", pluginName, "projection", name)
			continue
		}
		if plugin.RequiresValidModel() && ev.broken {
			e.logger.Debug("skipping plugin because the model is broken", "plugin", pluginName, "projection", name)
			continue
		}

		settings := effective[pluginName].Clone()
		e.logger.Info("applying plugin", "plugin", pluginName, "projection", name)
		e.logger.Debug("plugin settings", "plugin", pluginName, "settings", map[string]any(settings))

		m := e.manifests(filepath.Join(projectionDir, pluginName))
		pc := &core.PluginContext{
			Model:          ev.model,
			OriginalModel:  ev.original,
			ProjectionName: name,
			Projection:     p.Clone(),
			Events:         ev.events,
			Settings:       settings,
			Manifest:       m,
			Sources:        e.config.Sources,
			Extensions: core.Extensions{
				Transformers: e.transformers,
				Plugins:      e.plugins,
			},
			Logger: e.logger.With("plugin", pluginName, "projection", name),
		}

		if err := safely(func() error { return plugin.Execute(ctx, pc) }); err != nil {
			return nil, fmt.Errorf("plugin %s failed in projection %s: %w", pluginName, name, err)
		}
		manifests[pluginName] = m
	}

	return manifests, nil
}
