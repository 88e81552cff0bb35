package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapbuild/internal/dag"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// applyGuard runs the chain of another projection on behalf of an apply
// transform. The visited chain travels in the TransformContext, so the guard
// itself is stateless apart from the resolved chains it reads.
type applyGuard struct {
	chains map[string][]TransformBinding
}

// apply grafts target's chain onto model. declaredIn is the projection whose
// chain contains the apply transform.
func (g *applyGuard) apply(ctx context.Context, tc core.TransformContext, declaredIn, target string, model *core.Model) (*core.Model, error) {
	if target == declaredIn {
		return nil, core.NewConfigError("cannot recursively apply the same projection: %s", declaredIn)
	}
	if slices.Contains(tc.Visited, target) {
		chain := append(slices.Clone(tc.Visited), target)
		return nil, core.NewConfigError("cycle found in apply transforms: %s -> ...", strings.Join(chain, " -> "))
	}
	bindings, ok := g.chains[target]
	if !ok {
		return nil, &core.UnknownProjectionError{Projection: target, ReferencedBy: declaredIn}
	}

	visited := append(slices.Clone(tc.Visited), target)
	return runChain(ctx, bindings, chainInput{
		model:       model,
		original:    tc.OriginalModel,
		transformer: tc.Transformer,
		projection:  target,
		sources:     tc.Sources,
		visited:     visited,
	})
}

// applyTransformer is the transformer bound to apply entries.
type applyTransformer struct {
	guard      *applyGuard
	projection string
	targets    []string
}

func (a *applyTransformer) Name() string {
	return core.ApplyTransform
}

func (a *applyTransformer) Transform(ctx context.Context, tc core.TransformContext) (*core.Model, error) {
	model := tc.Model
	for _, target := range a.targets {
		var err error
		model, err = a.guard.apply(ctx, tc, a.projection, target, model)
		if err != nil {
			return nil, err
		}
	}
	return model, nil
}

type chainInput struct {
	model       *core.Model
	original    *core.Model
	transformer *core.ModelTransformer
	projection  string
	sources     []string
	visited     []string
}

// runChain threads model through every binding in order. Each step gets a
// fresh context built from the previous step's output.
func runChain(ctx context.Context, bindings []TransformBinding, in chainInput) (*core.Model, error) {
	model := in.model
	for _, b := range bindings {
		tc := core.TransformContext{
			Model:          model,
			OriginalModel:  in.original,
			Transformer:    in.transformer,
			ProjectionName: in.projection,
			Sources:        in.sources,
			Settings:       b.Settings.Clone(),
			Visited:        in.visited,
		}

		var next *core.Model
		err := safely(func() error {
			var err error
			next, err = b.Transformer.Transform(ctx, tc)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("transform %s failed in projection %s: %w", b.Transformer.Name(), in.projection, err)
		}
		if next == nil {
			return nil, fmt.Errorf("transform %s returned no model in projection %s", b.Transformer.Name(), in.projection)
		}
		model = next
	}
	return model, nil
}

// ApplyGraph builds the apply graph of cfg: one node per projection, and an
// edge from every apply target to the projection applying it. It reports
// malformed apply settings, self-applies and cycles as *core.ConfigError and
// unknown targets as *core.UnknownProjectionError.
func ApplyGraph(cfg *core.BuildConfig) (*dag.Graph[core.ProjectionConfig], error) {
	g := dag.NewGraph[core.ProjectionConfig]()
	names := cfg.OrderedProjectionNames()
	for _, name := range names {
		g.AddNode(name, cfg.Projections[name])
	}

	for _, name := range names {
		for _, t := range cfg.Projections[name].Transforms {
			if t.Name != core.ApplyTransform {
				continue
			}
			targets, err := applyTargets(name, t.Args)
			if err != nil {
				return nil, err
			}
			for _, target := range targets {
				if target == name {
					return nil, core.NewConfigError("cannot recursively apply the same projection: %s", name)
				}
				if _, ok := cfg.Projections[target]; !ok {
					return nil, &core.UnknownProjectionError{Projection: target, ReferencedBy: name}
				}
				if err := g.AddEdge(target, name); err != nil {
					return nil, fmt.Errorf("failed to add apply edge: %w", err)
				}
			}
		}
	}

	if hasCycle, path := g.HasCycle(); hasCycle {
		// Edges point from target to applier; report in apply order.
		slices.Reverse(path)
		return nil, core.NewConfigError("cycle found in apply transforms: %s -> ...", strings.Join(path, " -> "))
	}

	return g, nil
}
