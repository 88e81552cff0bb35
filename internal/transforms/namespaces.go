package transforms

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// IncludeNamespaces removes shapes outside the given namespaces. Prelude
// shapes and trait definitions are kept.
type IncludeNamespaces struct{}

func (IncludeNamespaces) Name() string { return "includeNamespaces" }

func (t IncludeNamespaces) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		Namespaces []string `mapstructure:"namespaces"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}
	return tc.Transformer.FilterShapes(tc.Model, func(s core.Shape) bool {
		return s.Namespace() == core.PreludeNamespace ||
			s.IsTraitDefinition() ||
			slices.Contains(cfg.Namespaces, s.Namespace())
	}), nil
}

// FlattenNamespaces moves a service and every shape reachable from it into
// one namespace. Shapes tagged with one of includeTagged are moved as well.
//
//	{"name": "flattenNamespaces", "args": {"namespace": "acme.flat", "service": "acme.api#Api"}}
type FlattenNamespaces struct{}

func (FlattenNamespaces) Name() string { return "flattenNamespaces" }

func (t FlattenNamespaces) Transform(_ context.Context, tc core.TransformContext) (*core.Model, error) {
	var cfg struct {
		Namespace     string   `mapstructure:"namespace"`
		Service       string   `mapstructure:"service"`
		IncludeTagged []string `mapstructure:"includeTagged"`
	}
	if err := decode(t.Name(), tc.Settings, &cfg); err != nil {
		return nil, err
	}
	if cfg.Namespace == "" || cfg.Service == "" {
		return nil, errors.New("flattenNamespaces requires namespace and service")
	}
	service, ok := tc.Model.Shape(cfg.Service)
	if !ok || service.Type != "service" {
		return nil, fmt.Errorf("flattenNamespaces: service %s not found", cfg.Service)
	}

	renames := make(map[string]string)
	move := func(s core.Shape) {
		if s.Namespace() == core.PreludeNamespace || s.Namespace() == cfg.Namespace {
			return
		}
		renames[s.ID] = cfg.Namespace + "#" + s.Name()
	}

	queue := []string{service.ID}
	seen := make(map[string]struct{})
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		s, ok := tc.Model.Shape(id)
		if !ok {
			continue
		}
		move(s)
		for _, target := range s.Members {
			queue = append(queue, target)
		}
	}
	for _, s := range tc.Model.Shapes() {
		if tagged(s, cfg.IncludeTagged) {
			move(s)
		}
	}

	// Two shapes flattening onto the same id would silently merge.
	targets := make(map[string]string, len(renames))
	for from, to := range renames {
		if other, dup := targets[to]; dup {
			return nil, fmt.Errorf("flattenNamespaces: %s and %s both flatten to %s", other, from, to)
		}
		if _, exists := tc.Model.Shape(to); exists {
			if _, moving := renames[to]; !moving {
				return nil, fmt.Errorf("flattenNamespaces: %s conflicts with existing shape %s", from, to)
			}
		}
		targets[to] = from
	}

	return tc.Transformer.RenameShapes(tc.Model, renames), nil
}
