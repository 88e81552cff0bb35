// Package assembler loads model files, merges them into a base model and
// validates the result.
//
// Model files are YAML or JSON documents:
//
//	version: "1.0"
//	shapes:
//	  example.weather#Forecast:
//	    type: structure
//	    members:
//	      chance: example.weather#Chance
//
// shapes may also be a list of shapes carrying an id field.
package assembler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// Validation event ids.
const (
	EventImport      = "Import"
	EventModel       = "Model"
	EventConflict    = "ShapeConflict"
	EventShapeID     = "ShapeId"
	EventShapeType   = "ShapeType"
	EventTarget      = "Target"
	EventTraitTarget = "TraitTarget"
)

// modelExtensions are the file types loaded from directories and globs.
var modelExtensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Assembler implements core.Assembler on an afero filesystem.
type Assembler struct {
	fs     afero.Fs
	logger *slog.Logger
}

var _ core.Assembler = (*Assembler)(nil)

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an assembler reading from fs.
func New(fs afero.Fs, opts ...Option) *Assembler {
	a := &Assembler{
		fs:     fs,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble merges every file named by imports into base and validates the
// merged model. An import may be a file, a directory (walked recursively)
// or a doublestar glob. Imports that cannot be found, parsed or merged
// yield error events and a nil model.
func (a *Assembler) Assemble(ctx context.Context, base *core.Model, imports []string) core.ValidatedModel {
	if base == nil {
		base = core.NewModel()
	}

	var events []core.ValidationEvent
	model := base
	for _, imp := range imports {
		if err := ctx.Err(); err != nil {
			return core.ValidatedModel{Events: append(events, core.ValidationEvent{
				ID: EventImport, Severity: core.SeverityError, Message: err.Error(),
			})}
		}

		files, err := a.expand(imp)
		if err != nil {
			events = append(events, core.ValidationEvent{
				ID:       EventImport,
				Severity: core.SeverityError,
				Message:  err.Error(),
				Source:   imp,
			})
			continue
		}
		for _, file := range files {
			var fileEvents []core.ValidationEvent
			model, fileEvents = a.mergeFile(model, file)
			events = append(events, fileEvents...)
		}
	}

	if core.ContainsErrors(events) {
		a.logger.Debug("model assembly failed", "imports", imports, "events", len(events))
		return core.ValidatedModel{Events: events}
	}

	events = append(events, Validate(model)...)
	return core.ValidatedModel{Model: model, Events: events}
}

// expand resolves an import path to the sorted list of files it names.
func (a *Assembler) expand(imp string) ([]string, error) {
	if isGlob(imp) {
		return a.glob(imp)
	}

	info, err := a.fs.Stat(imp)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to find import %s", imp)
		}
		return nil, fmt.Errorf("unable to read import %s: %w", imp, err)
	}
	if !info.IsDir() {
		return []string{imp}, nil
	}

	var files []string
	err = afero.Walk(a.fs, imp, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && isModelFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("unable to walk import %s: %w", imp, err)
	}
	return files, nil
}

// glob matches pattern against model files beneath its static prefix.
func (a *Assembler) glob(pattern string) ([]string, error) {
	slashed := filepath.ToSlash(pattern)
	if !doublestar.ValidatePattern(slashed) {
		return nil, fmt.Errorf("invalid import pattern %s", pattern)
	}

	root, _ := doublestar.SplitPattern(slashed)
	var files []string
	err := afero.Walk(a.fs, filepath.FromSlash(root), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !isModelFile(path) {
			return nil
		}
		ok, err := doublestar.Match(slashed, filepath.ToSlash(path))
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to find import %s", pattern)
		}
		return nil, fmt.Errorf("unable to expand import %s: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("import pattern %s matched no model files", pattern)
	}
	slices.Sort(files)
	return files, nil
}

// mergeFile loads file and adds its shapes to model. Redefining a shape
// with different content is an error; identical redefinitions are ignored.
func (a *Assembler) mergeFile(model *core.Model, file string) (*core.Model, []core.ValidationEvent) {
	a.logger.Debug("loading model file", "file", file)

	shapes, err := a.load(file)
	if err != nil {
		return model, []core.ValidationEvent{{
			ID:       EventModel,
			Severity: core.SeverityError,
			Message:  err.Error(),
			Source:   file,
		}}
	}

	var events []core.ValidationEvent
	add := make([]core.Shape, 0, len(shapes))
	for _, s := range shapes {
		if existing, ok := model.Shape(s.ID); ok {
			if !sameShape(existing, s) {
				events = append(events, core.ValidationEvent{
					ID:       EventConflict,
					Severity: core.SeverityError,
					ShapeID:  s.ID,
					Message:  fmt.Sprintf("conflicting shape definition for `%s`", s.ID),
					Source:   file,
				})
			}
			continue
		}
		add = append(add, s)
	}
	return model.With(add...), events
}

// load parses a model file.
func (a *Assembler) load(file string) ([]core.Shape, error) {
	data, err := afero.ReadFile(a.fs, file)
	if err != nil {
		return nil, fmt.Errorf("unable to read model file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML or JSON model document.
func Parse(data []byte) ([]core.Shape, error) {
	var doc struct {
		Version string    `yaml:"version"`
		Shapes  yaml.Node `yaml:"shapes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to parse model file: %w", err)
	}
	if doc.Version != "" && doc.Version != "1.0" {
		return nil, fmt.Errorf("unsupported model version %q", doc.Version)
	}

	var shapes []core.Shape
	switch doc.Shapes.Kind {
	case 0:
		return nil, nil
	case yaml.SequenceNode:
		if err := doc.Shapes.Decode(&shapes); err != nil {
			return nil, fmt.Errorf("unable to decode shapes: %w", err)
		}
	case yaml.MappingNode:
		var byID map[string]core.Shape
		if err := doc.Shapes.Decode(&byID); err != nil {
			return nil, fmt.Errorf("unable to decode shapes: %w", err)
		}
		for id, s := range byID {
			if s.ID != "" && s.ID != id {
				return nil, fmt.Errorf("shape key %s does not match id %s", id, s.ID)
			}
			s.ID = id
			shapes = append(shapes, s)
		}
		slices.SortFunc(shapes, func(x, y core.Shape) int { return strings.Compare(x.ID, y.ID) })
	default:
		return nil, fmt.Errorf("shapes must be a list or a map")
	}

	for i, s := range shapes {
		if s.ID == "" {
			return nil, fmt.Errorf("shape %d has no id", i)
		}
	}
	return shapes, nil
}

func sameShape(a, b core.Shape) bool {
	return a.Type == b.Type &&
		reflect.DeepEqual(nilIfEmpty(a.Members), nilIfEmpty(b.Members)) &&
		reflect.DeepEqual(nilIfEmpty(a.Traits), nilIfEmpty(b.Traits))
}

func nilIfEmpty[V any](m map[string]V) map[string]V {
	if len(m) == 0 {
		return nil
	}
	return m
}

func isGlob(path string) bool {
	return strings.ContainsAny(path, "*?[{")
}

func isModelFile(path string) bool {
	return modelExtensions[strings.ToLower(filepath.Ext(path))]
}
