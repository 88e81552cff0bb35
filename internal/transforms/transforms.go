// Package transforms provides the built-in model transforms and the registry
// the engine resolves transform names against.
package transforms

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapbuild/internal/registry"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// Registry holds transformers by name.
type Registry = registry.Registry[core.Transformer]

// NewRegistry returns a registry containing every built-in transform.
func NewRegistry() *Registry {
	r := registry.New[core.Transformer]("transform")
	r.MustRegister(Builtins()...)
	return r
}

// Builtins returns the built-in transforms.
func Builtins() []core.Transformer {
	return []core.Transformer{
		ExcludeShapesByTag{},
		IncludeShapesByTag{},
		ExcludeTraits{},
		IncludeNamespaces{},
		RemoveUnusedShapes{},
		RemoveTraitDefinitions{},
		RenameShapes{},
		FlattenNamespaces{},
	}
}

// decode decodes transform settings into out. Unknown keys are rejected so
// that typos in a build config surface as errors.
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
		return fmt.Errorf("invalid %s settings: %w", name, err)
	}
	return nil
}

func tagged(s core.Shape, tags []string) bool {
	for _, have := range s.Tags() {
		for _, want := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}
