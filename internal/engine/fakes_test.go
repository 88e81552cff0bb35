package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/afero"

	"github.com/leapstack-labs/leapbuild/internal/manifest"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

const traitInvalid = "test#invalid"

// fakeAssembler merges imports from an in-memory table and reports an error
// event for every shape carrying traitInvalid.
type fakeAssembler struct {
	imports map[string]*core.Model
}

func (a *fakeAssembler) Assemble(_ context.Context, base *core.Model, imports []string) core.ValidatedModel {
	model := base
	for _, path := range imports {
		m, ok := a.imports[path]
		if !ok {
			return core.ValidatedModel{Events: []core.ValidationEvent{{
				ID:       "Import",
				Severity: core.SeverityError,
				Message:  fmt.Sprintf("unable to find import %s", path),
				Source:   path,
			}}}
		}
		model = model.With(m.Shapes()...)
	}

	var events []core.ValidationEvent
	for _, s := range model.ShapesWithTrait(traitInvalid) {
		events = append(events, core.ValidationEvent{
			ID:       "Invalid",
			Severity: core.SeverityError,
			ShapeID:  s.ID,
			Message:  "shape is marked invalid",
		})
	}
	return core.ValidatedModel{Model: model, Events: events}
}

type transformFunc func(ctx context.Context, tc core.TransformContext) (*core.Model, error)

type fakeTransformer struct {
	name string
	fn   transformFunc
}

func (f *fakeTransformer) Name() string { return f.name }

func (f *fakeTransformer) Transform(ctx context.Context, tc core.TransformContext) (*core.Model, error) {
	return f.fn(ctx, tc)
}

// journal records events from concurrent projections in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	j.entries = append(j.entries, entry)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) index(entry string) int {
	for i, e := range j.list() {
		if e == entry {
			return i
		}
	}
	return -1
}

// testTransformers returns the lookup used by engine tests:
//   - add: adds a string shape named by the "id" setting
//   - invalidate: marks the shape named by "id" invalid
//   - record: journals "transform:<projection>"
//   - fail: returns an error
//   - explode: panics
func testTransformers(j *journal) core.TransformerLookup {
	transformers := map[string]transformFunc{
		"add": func(_ context.Context, tc core.TransformContext) (*core.Model, error) {
			id, _ := tc.Settings.String("id")
			return tc.Model.With(core.Shape{ID: id, Type: "string"}), nil
		},
		"invalidate": func(_ context.Context, tc core.TransformContext) (*core.Model, error) {
			id, _ := tc.Settings.String("id")
			return tc.Transformer.MapShapes(tc.Model, func(s core.Shape) core.Shape {
				if s.ID == id {
					if s.Traits == nil {
						s.Traits = map[string]any{}
					}
					s.Traits[traitInvalid] = true
				}
				return s
			}), nil
		},
		"record": func(_ context.Context, tc core.TransformContext) (*core.Model, error) {
			if j != nil {
				j.add("transform:" + tc.ProjectionName)
			}
			return tc.Model, nil
		},
		"fail": func(context.Context, core.TransformContext) (*core.Model, error) {
			return nil, errors.New("forced transform failure")
		},
		"explode": func(context.Context, core.TransformContext) (*core.Model, error) {
			panic("transform exploded")
		},
	}
	return func(name string) (core.Transformer, bool) {
		fn, ok := transformers[name]
		if !ok {
			return nil, false
		}
		return &fakeTransformer{name: name, fn: fn}, true
	}
}

type pluginCall struct {
	projection string
	settings   core.Settings
	broken     bool
	baseDir    string
}

type fakePlugin struct {
	name          string
	serial        bool
	requiresValid bool
	err           error
	block         <-chan struct{}
	journal       *journal

	mu    sync.Mutex
	calls []pluginCall
}

func (p *fakePlugin) Name() string             { return p.name }
func (p *fakePlugin) Serial() bool             { return p.serial }
func (p *fakePlugin) RequiresValidModel() bool { return p.requiresValid }

func (p *fakePlugin) Execute(_ context.Context, pc *core.PluginContext) error {
	if p.block != nil {
		<-p.block
	}
	if p.journal != nil {
		p.journal.add(p.name + ":" + pc.ProjectionName)
	}

	p.mu.Lock()
	p.calls = append(p.calls, pluginCall{
		projection: pc.ProjectionName,
		settings:   pc.Settings,
		broken:     core.ContainsErrors(pc.Events),
		baseDir:    pc.Manifest.BaseDir(),
	})
	p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	_, err := pc.Manifest.WriteFile("out.txt", []byte(pc.ProjectionName))
	return err
}

func (p *fakePlugin) callsFor(projection string) []pluginCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []pluginCall
	for _, c := range p.calls {
		if c.projection == projection {
			out = append(out, c)
		}
	}
	return out
}

func pluginLookup(plugins ...*fakePlugin) core.PluginLookup {
	byName := make(map[string]*fakePlugin, len(plugins))
	for _, p := range plugins {
		byName[p.name] = p
	}
	return func(name string) (core.Plugin, bool) {
		p, ok := byName[name]
		if !ok {
			return nil, false
		}
		return p, true
	}
}

func baseModel() *core.Model {
	return core.NewModel(
		core.Shape{ID: "example#Service", Type: "service", Members: map[string]string{"op": "example#Op"}},
		core.Shape{ID: "example#Op", Type: "operation"},
	)
}

func memManifests() core.ManifestFactory {
	return manifest.NewFactory(afero.NewMemMapFs())
}

func transform(name string, args core.Settings) core.TransformConfig {
	return core.TransformConfig{Name: name, Args: args}
}

func applyOf(targets ...string) core.TransformConfig {
	list := make([]any, len(targets))
	for i, t := range targets {
		list[i] = t
	}
	return transform(core.ApplyTransform, core.Settings{"projections": list})
}
