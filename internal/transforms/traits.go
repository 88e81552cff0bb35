package transforms

import (
	"context"
	"strings"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// ExcludeTraits removes trait applications and trait definitions. An entry
// ending in '#' matches every trait in that namespace.
//
//	{"name": "excludeTraits", "args": {"traits": ["example#internal", "acme#"]}}
type ExcludeTraits struct{}

func (ExcludeTraits) Name() string { return "excludeTraits" }

func (t ExcludeTraits) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		Traits []string `mapstructure:"traits"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}

	matches := func(trait string) bool {
		for _, want := range cfg.Traits {
			if strings.HasSuffix(want, "#") {
				if strings.HasPrefix(trait, want) {
					return true
				}
			} else if trait == want {
				return true
			}
		}
		return false
	}

	var definitions []string
	for _, s := range tc.Model.TraitDefinitions() {
		if matches(s.ID) {
			definitions = append(definitions, s.ID)
		}
	}

	model := tc.Transformer.RemoveShapes(tc.Model, definitions)
	return tc.Transformer.MapShapes(model, func(s core.Shape) core.Shape {
		for trait := range s.Traits {
			if matches(trait) {
				delete(s.Traits, trait)
			}
		}
		return s
	}), nil
}

// RemoveTraitDefinitions removes trait definition shapes while leaving trait
// applications in place. Definitions tagged with one of exportTagged are
// kept.
type RemoveTraitDefinitions struct{}

func (RemoveTraitDefinitions) Name() string { return "removeTraitDefinitions" }

func (t RemoveTraitDefinitions) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		ExportTagged []string `mapstructure:"exportTagged"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}

	var remove []string
	for _, s := range tc.Model.TraitDefinitions() {
		if !tagged(s, cfg.ExportTagged) {
			remove = append(remove, s.ID)
		}
	}
	return tc.Transformer.RemoveShapes(tc.Model, remove), nil
}
