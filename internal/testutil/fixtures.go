package testutil

import "github.com/leapstack-labs/leapbuild/pkg/core"

// WeatherModel returns a small valid model: a service with one operation,
// its output structure, a tagged internal structure and a trait definition.
func WeatherModel() *core.Model {
	return core.NewModel(
		core.Shape{
			ID:      "example.weather#Weather",
			Type:    "service",
			Members: map[string]string{"GetForecast": "example.weather#GetForecast"},
		},
		core.Shape{
			ID:      "example.weather#GetForecast",
			Type:    "operation",
			Members: map[string]string{"output": "example.weather#Forecast"},
		},
		core.Shape{
			ID:      "example.weather#Forecast",
			Type:    "structure",
			Members: map[string]string{"chance": "example.weather#Chance"},
			Traits:  map[string]any{core.TraitDocumentation: "A forecast."},
		},
		core.Shape{ID: "example.weather#Chance", Type: "float"},
		core.Shape{
			ID:     "example.weather#AuditRecord",
			Type:   "structure",
			Traits: map[string]any{core.TraitTags: []any{"internal"}},
		},
		core.Shape{
			ID:     "example.weather#audited",
			Type:   "structure",
			Traits: map[string]any{core.TraitTrait: map[string]any{}},
		},
	)
}
