package core

import "slices"

// ModelTransformer provides model rewriting primitives shared by transforms.
// It holds no state; every method returns a new model.
type ModelTransformer struct{}

// NewModelTransformer returns the shared transformer service.
func NewModelTransformer() *ModelTransformer {
	return &ModelTransformer{}
}

// RemoveShapes removes shapes by id along with any member that targets a
// removed shape. Trait applications are left untouched.
func (t *ModelTransformer) RemoveShapes(m *Model, ids []string) *Model {
	if len(ids) == 0 {
		return m.clone()
	}
	removed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		removed[id] = struct{}{}
	}

	out := m.Without(ids...)
	for id, s := range out.shapes {
		changed := false
		for name, target := range s.Members {
			if _, gone := removed[target]; gone {
				delete(s.Members, name)
				changed = true
			}
		}
		if changed {
			out.shapes[id] = s
		}
	}
	return out
}

// FilterShapes keeps only the shapes for which keep returns true.
func (t *ModelTransformer) FilterShapes(m *Model, keep func(Shape) bool) *Model {
	var drop []string
	for _, s := range m.Shapes() {
		if !keep(s) {
			drop = append(drop, s.ID)
		}
	}
	return t.RemoveShapes(m, drop)
}

// MapShapes replaces every shape with the result of fn. fn must not change
// shape ids; use RenameShapes for that.
func (t *ModelTransformer) MapShapes(m *Model, fn func(Shape) Shape) *Model {
	out := &Model{shapes: make(map[string]Shape, m.Len())}
	for _, s := range m.Shapes() {
		mapped := fn(s)
		mapped.ID = s.ID
		out.shapes[s.ID] = mapped.Clone()
	}
	return out
}

// RemoveTraits strips the given trait applications from every shape.
func (t *ModelTransformer) RemoveTraits(m *Model, traits []string) *Model {
	return t.MapShapes(m, func(s Shape) Shape {
		for _, trait := range traits {
			delete(s.Traits, trait)
		}
		return s
	})
}

// RenameShapes renames shapes and rewrites member targets and trait
// applications that point at renamed ids.
func (t *ModelTransformer) RenameShapes(m *Model, renames map[string]string) *Model {
	if len(renames) == 0 {
		return m.clone()
	}
	rename := func(id string) string {
		if to, ok := renames[id]; ok {
			return to
		}
		return id
	}

	out := &Model{shapes: make(map[string]Shape, m.Len())}
	for _, s := range m.Shapes() {
		s.ID = rename(s.ID)
		for name, target := range s.Members {
			s.Members[name] = rename(target)
		}
		if len(s.Traits) > 0 {
			traits := make(map[string]any, len(s.Traits))
			for trait, value := range s.Traits {
				traits[rename(trait)] = value
			}
			s.Traits = traits
		}
		out.shapes[s.ID] = s
	}
	return out
}

// RemoveUnreferencedShapes removes shapes that cannot be reached from a
// root. Roots are services, trait definitions, and shapes for which keep
// returns true (keep may be nil).
func (t *ModelTransformer) RemoveUnreferencedShapes(m *Model, keep func(Shape) bool) *Model {
	reachable := make(map[string]struct{})
	var queue []string
	for _, s := range m.Shapes() {
		if s.Type == "service" || s.IsTraitDefinition() || (keep != nil && keep(s)) {
			queue = append(queue, s.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := reachable[id]; seen {
			continue
		}
		reachable[id] = struct{}{}

		s, ok := m.shapes[id]
		if !ok {
			continue
		}
		for _, target := range s.Members {
			queue = append(queue, target)
		}
		for trait := range s.Traits {
			queue = append(queue, trait)
		}
	}

	var drop []string
	for _, id := range m.ShapeIDs() {
		if _, ok := reachable[id]; !ok {
			drop = append(drop, id)
		}
	}
	slices.Sort(drop)
	return t.RemoveShapes(m, drop)
}
