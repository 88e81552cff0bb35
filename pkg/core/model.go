package core

import (
	"maps"
	"reflect"
	"slices"
	"strings"
)

// Prelude trait ids understood by every model.
const (
	PreludeNamespace = "prelude"

	TraitTrait         = "prelude#trait"
	TraitTags          = "prelude#tags"
	TraitDocumentation = "prelude#documentation"
	TraitRequired      = "prelude#required"
	TraitDeprecated    = "prelude#deprecated"
	TraitPrivate       = "prelude#private"
	TraitError         = "prelude#error"
)

// ShapeTypes lists the shape types a model may contain.
var ShapeTypes = []string{
	"blob", "boolean", "string", "byte", "short", "integer", "long",
	"float", "double", "bigInteger", "bigDecimal", "timestamp", "document",
	"list", "map", "structure", "union", "enum",
	"service", "resource", "operation",
}

// Shape is a single node of the model graph.
type Shape struct {
	// ID is the absolute shape id, e.g. "example.weather#Forecast".
	ID string `json:"id" yaml:"id"`
	// Type is one of ShapeTypes.
	Type string `json:"type" yaml:"type"`
	// Traits maps trait shape ids to trait values.
	Traits map[string]any `json:"traits,omitempty" yaml:"traits,omitempty"`
	// Members maps member names to target shape ids.
	Members map[string]string `json:"members,omitempty" yaml:"members,omitempty"`
}

// Namespace returns the part of the id before '#'.
func (s Shape) Namespace() string {
	ns, _, _ := strings.Cut(s.ID, "#")
	return ns
}

// Name returns the part of the id after '#'.
func (s Shape) Name() string {
	_, name, _ := strings.Cut(s.ID, "#")
	return name
}

// HasTrait reports whether the shape carries the given trait.
func (s Shape) HasTrait(trait string) bool {
	_, ok := s.Traits[trait]
	return ok
}

// IsTraitDefinition reports whether the shape defines a trait.
func (s Shape) IsTraitDefinition() bool {
	return s.HasTrait(TraitTrait)
}

// Tags returns the values of the prelude tags trait.
func (s Shape) Tags() []string {
	return Settings{"tags": s.Traits[TraitTags]}.StringSlice("tags")
}

// Clone returns a deep copy of the shape's maps.
func (s Shape) Clone() Shape {
	out := Shape{ID: s.ID, Type: s.Type}
	if s.Traits != nil {
		out.Traits = maps.Clone(s.Traits)
	}
	if s.Members != nil {
		out.Members = maps.Clone(s.Members)
	}
	return out
}

// Model is an immutable graph of shapes keyed by shape id.
// Every operation that changes a model returns a new value.
type Model struct {
	shapes map[string]Shape
}

// NewModel creates a model from shapes. Later shapes with the same id
// replace earlier ones.
func NewModel(shapes ...Shape) *Model {
	m := &Model{shapes: make(map[string]Shape, len(shapes))}
	for _, s := range shapes {
		m.shapes[s.ID] = s.Clone()
	}
	return m
}

// Len returns the number of shapes.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.shapes)
}

// Shape returns a copy of the shape with the given id.
func (m *Model) Shape(id string) (Shape, bool) {
	if m == nil {
		return Shape{}, false
	}
	s, ok := m.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return s.Clone(), true
}

// HasShape reports whether the model contains id.
func (m *Model) HasShape(id string) bool {
	if m == nil {
		return false
	}
	_, ok := m.shapes[id]
	return ok
}

// ShapeIDs returns all shape ids in sorted order.
func (m *Model) ShapeIDs() []string {
	if m == nil {
		return nil
	}
	ids := slices.Collect(maps.Keys(m.shapes))
	slices.Sort(ids)
	return ids
}

// Shapes returns copies of all shapes sorted by id.
func (m *Model) Shapes() []Shape {
	ids := m.ShapeIDs()
	out := make([]Shape, len(ids))
	for i, id := range ids {
		out[i] = m.shapes[id].Clone()
	}
	return out
}

// ShapesWithTrait returns the shapes carrying trait, sorted by id.
func (m *Model) ShapesWithTrait(trait string) []Shape {
	var out []Shape
	for _, s := range m.Shapes() {
		if s.HasTrait(trait) {
			out = append(out, s)
		}
	}
	return out
}

// TraitDefinitions returns every shape marked with the prelude trait trait.
func (m *Model) TraitDefinitions() []Shape {
	return m.ShapesWithTrait(TraitTrait)
}

// With returns a new model with shapes added or replaced.
func (m *Model) With(shapes ...Shape) *Model {
	out := m.clone()
	for _, s := range shapes {
		out.shapes[s.ID] = s.Clone()
	}
	return out
}

// Without returns a new model without the given ids.
func (m *Model) Without(ids ...string) *Model {
	out := m.clone()
	for _, id := range ids {
		delete(out.shapes, id)
	}
	return out
}

// Equal reports whether two models have identical content.
func (m *Model) Equal(other *Model) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m.Len() == 0 {
		return true
	}
	return reflect.DeepEqual(m.shapes, other.shapes)
}

func (m *Model) clone() *Model {
	out := &Model{shapes: make(map[string]Shape, m.Len())}
	if m == nil {
		return out
	}
	for id, s := range m.shapes {
		out.shapes[id] = s.Clone()
	}
	return out
}
