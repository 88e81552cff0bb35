package engine

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// TransformBinding is a resolved transform and the settings it runs with.
type TransformBinding struct {
	Settings    core.Settings
	Transformer core.Transformer
}

// ResolveTransforms resolves the transform chain of every projection in
// cfg. Declaration order is preserved. apply transforms are bound to a guard
// that reads the returned map, so every chain is resolved before any apply
// can run.
func ResolveTransforms(cfg *core.BuildConfig, lookup core.TransformerLookup) (map[string][]TransformBinding, error) {
	chains := make(map[string][]TransformBinding, len(cfg.Projections))
	guard := &applyGuard{chains: chains}

	for _, projection := range cfg.OrderedProjectionNames() {
		p := cfg.Projections[projection]
		chain := make([]TransformBinding, 0, len(p.Transforms))

		for _, t := range p.Transforms {
			if t.Name == core.ApplyTransform {
				targets, err := applyTargets(projection, t.Args)
				if err != nil {
					return nil, err
				}
				chain = append(chain, TransformBinding{
					Settings:    t.Args.Clone(),
					Transformer: &applyTransformer{guard: guard, projection: projection, targets: targets},
				})
				continue
			}

			transformer, ok := lookup(t.Name)
			if !ok {
				return nil, &core.UnknownTransformError{Transform: t.Name, Projection: projection}
			}
			chain = append(chain, TransformBinding{Settings: t.Args.Clone(), Transformer: transformer})
		}

		chains[projection] = chain
	}

	return chains, nil
}

type applySettings struct {
	Projections []string `mapstructure:"projections"`
}

// applyTargets decodes the projections an apply transform declared in
// projection grafts, in order. Unknown keys, non-string targets and a
// missing projections list are config errors.
func applyTargets(projection string, settings core.Settings) ([]string, error) {
	var out applySettings
	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		Metadata:    &md,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(settings)); err != nil {
		return nil, core.NewConfigError("invalid apply settings in projection %s: %v", projection, err)
	}
	if len(md.Keys) == 0 {
		return nil, core.NewConfigError("apply transform in projection %s requires a projections list", projection)
	}
	return out.Projections, nil
}
