package engine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// evaluation is a projection's model after imports, transforms and
// re-validation.
type evaluation struct {
	// model is nil when the projection imports could not be merged.
	model *core.Model
	// original is the model the transform chain started from.
	original *core.Model
	events   []core.ValidationEvent
	broken   bool
}

// evaluateProjection merges projection imports into base, runs the
// projection's transform chain and validates the result. A failed import
// merge is not an error: it yields an evaluation with events and no model.
func (e *Engine) evaluateProjection(ctx context.Context, base *core.Model, name string, p core.ProjectionConfig) (*evaluation, error) {
	resolved := base
	if len(p.Imports) > 0 {
		e.logger.Debug("merging projection imports", "projection", name, "imports", p.Imports)
		merged := e.assembler.Assemble(ctx, base, p.Imports)
		if merged.Model == nil || merged.Broken() {
			e.logger.Error("model could not be merged with projection imports",
				"projection", name, "imports", p.Imports, "events", len(merged.Events))
			return &evaluation{events: merged.Events, broken: true}, nil
		}
		resolved = merged.Model
	}

	projected, err := runChain(ctx, e.chains[name], chainInput{
		model:       resolved,
		original:    resolved,
		transformer: e.modelXform,
		projection:  name,
		sources:     e.config.Sources,
		visited:     []string{name},
	})
	if err != nil {
		return nil, err
	}

	validated := e.assembler.Assemble(ctx, projected, nil)
	return &evaluation{
		model:    projected,
		original: resolved,
		events:   validated.Events,
		broken:   validated.Broken(),
	}, nil
}

// safely runs fn and converts a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
