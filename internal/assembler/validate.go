package assembler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// Validate checks a model and returns its events sorted by shape id.
//
//   - shape ids must be absolute (namespace#name): ERROR
//   - shape types must be known: ERROR
//   - member targets must exist or be in the prelude: ERROR
//   - applied traits should be defined or be in the prelude: WARNING
func Validate(model *core.Model) []core.ValidationEvent {
	var events []core.ValidationEvent
	for _, s := range model.Shapes() {
		if ns, name, ok := strings.Cut(s.ID, "#"); !ok || ns == "" || name == "" {
			events = append(events, core.ValidationEvent{
				ID:       EventShapeID,
				Severity: core.SeverityError,
				ShapeID:  s.ID,
				Message:  fmt.Sprintf("shape id `%s` must be of the form namespace#name", s.ID),
			})
		}

		if !slices.Contains(core.ShapeTypes, s.Type) {
			events = append(events, core.ValidationEvent{
				ID:       EventShapeType,
				Severity: core.SeverityError,
				ShapeID:  s.ID,
				Message:  fmt.Sprintf("unknown shape type `%s`", s.Type),
			})
		}

		for _, member := range sortedKeys(s.Members) {
			target := s.Members[member]
			if isPrelude(target) || model.HasShape(target) {
				continue
			}
			events = append(events, core.ValidationEvent{
				ID:       EventTarget,
				Severity: core.SeverityError,
				ShapeID:  s.ID,
				Message:  fmt.Sprintf("member `%s` targets unknown shape `%s`", member, target),
			})
		}

		for _, trait := range sortedKeys(s.Traits) {
			if isPrelude(trait) {
				continue
			}
			if def, ok := model.Shape(trait); ok && def.IsTraitDefinition() {
				continue
			}
			events = append(events, core.ValidationEvent{
				ID:       EventTraitTarget,
				Severity: core.SeverityWarning,
				ShapeID:  s.ID,
				Message:  fmt.Sprintf("trait `%s` is applied but not defined", trait),
			})
		}
	}
	return events
}

func isPrelude(id string) bool {
	return strings.HasPrefix(id, core.PreludeNamespace+"#")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
