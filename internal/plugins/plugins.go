// Package plugins provides the built-in build plugins and the registry the
// engine resolves plugin names against.
package plugins

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"

	"github.com/leapstack-labs/leapbuild/internal/registry"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// Registry holds plugins by name.
type Registry = registry.Registry[core.Plugin]

// NewRegistry returns a registry containing every built-in plugin. fs is
// used by plugins that read source files.
func NewRegistry(fs afero.Fs) *Registry {
	r := registry.New[core.Plugin]("plugin")
	r.MustRegister(
		&ModelPlugin{},
		&BuildInfoPlugin{},
		&SourcesPlugin{fs: fs},
		&ShapeIndexPlugin{},
	)
	return r
}

func decode(name string, settings core.Settings, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(settings)); err != nil {
		return fmt.Errorf("invalid %s plugin settings: %w", name, err)
	}
	return nil
}
