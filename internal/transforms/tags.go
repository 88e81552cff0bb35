package transforms

import (
	"context"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

type tagSettings struct {
	Tags []string `mapstructure:"tags"`
}

// ExcludeShapesByTag removes every shape tagged with any of the given tags.
//
//	{"name": "excludeShapesByTag", "args": {"tags": ["internal"]}}
type ExcludeShapesByTag struct{}

func (ExcludeShapesByTag) Name() string { return "excludeShapesByTag" }

func (t ExcludeShapesByTag) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg tagSettings
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}
	return tc.Transformer.FilterShapes(tc.Model, func(s core.Shape) bool {
		return !tagged(s, cfg.Tags)
	}), nil
}

// IncludeShapesByTag removes every shape not tagged with at least one of the
// given tags. Trait definitions are kept.
type IncludeShapesByTag struct{}

func (IncludeShapesByTag) Name() string { return "includeShapesByTag" }

func (t IncludeShapesByTag) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg tagSettings
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}
	return tc.Transformer.FilterShapes(tc.Model, func(s core.Shape) bool {
		return s.IsTraitDefinition() || tagged(s, cfg.Tags)
	}), nil
}
