package transforms

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// RemoveUnusedShapes removes shapes that are not connected to a service or a
// trait definition. Shapes tagged with one of exportTagged are kept along
// with everything they reference.
type RemoveUnusedShapes struct{}

func (RemoveUnusedShapes) Name() string { return "removeUnusedShapes" }

func (t RemoveUnusedShapes) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		ExportTagged []string `mapstructure:"exportTagged"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}
	return tc.Transformer.RemoveUnreferencedShapes(tc.Model, func(s core.Shape) bool {
		return s.Namespace() == core.PreludeNamespace || tagged(s, cfg.ExportTagged)
	}), nil
}

// RenameShapes renames shapes and updates every reference to them.
//
//	{"name": "renameShapes", "args": {"renamed": {"ns#Old": "ns#New"}}}
type RenameShapes struct{}

func (RenameShapes) Name() string { return "renameShapes" }

func (t RenameShapes) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		Renamed map[string]string `mapstructure:"renamed"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}

	for from, to := range cfg.Renamed {
		if !tc.Model.HasShape(from) {
			return nil, fmt.Errorf("renameShapes: shape %s not found", from)
		}
		if _, renamed := cfg.Renamed[to]; tc.Model.HasShape(to) && !renamed {
			return nil, fmt.Errorf("renameShapes: cannot rename %s to existing shape %s", from, to)
		}
	}
	return tc.Transformer.RenameShapes(tc.Model, cfg.Renamed), nil
}
