package transforms_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/testutil"
	"github.com/leapstack-labs/leapbuild/internal/transforms"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

func run(t *testing.T, name string, settings core.Settings, model *core.Model) (*core.Model, error) {
	t.Helper()
	transformer, ok := transforms.NewRegistry().Get(name)
	require.True(t, ok, "transform %s is not registered", name)

	return transformer.Transform(context.Background(), core.TransformContext{
		Model:          model,
		OriginalModel:  model,
		Transformer:    core.NewModelTransformer(),
		ProjectionName: "test",
		Settings:       settings,
	})
}

func mustRun(t *testing.T, name string, settings core.Settings, model *core.Model) *core.Model {
	t.Helper()
	out, err := run(t, name, settings, model)
	require.NoError(t, err)
	return out
}

func TestNewRegistry_Builtins(t *testing.T) {
	assert.Equal(t, []string{
		"excludeShapesByTag",
		"excludeTraits",
		"flattenNamespaces",
		"includeNamespaces",
		"includeShapesByTag",
		"removeTraitDefinitions",
		"removeUnusedShapes",
		"renameShapes",
	}, transforms.NewRegistry().Names())
}

func TestExcludeShapesByTag(t *testing.T) {
	out := mustRun(t, "excludeShapesByTag", core.Settings{"tags": []any{"internal"}}, testutil.WeatherModel())

	assert.False(t, out.HasShape("example.weather#AuditRecord"))
	assert.True(t, out.HasShape("example.weather#Forecast"))
}

func TestExcludeShapesByTag_SingleStringTag(t *testing.T) {
	out := mustRun(t, "excludeShapesByTag", core.Settings{"tags": "internal"}, testutil.WeatherModel())
	assert.False(t, out.HasShape("example.weather#AuditRecord"))
}

func TestIncludeShapesByTag(t *testing.T) {
	out := mustRun(t, "includeShapesByTag", core.Settings{"tags": []any{"internal"}}, testutil.WeatherModel())

	assert.Equal(t, []string{"example.weather#AuditRecord", "example.weather#audited"}, out.ShapeIDs())
}

func TestExcludeTraits(t *testing.T) {
	tests := []struct {
		name   string
		traits []any
		check  func(t *testing.T, m *core.Model)
	}{
		{
			name:   "by id",
			traits: []any{core.TraitDocumentation},
			check: func(t *testing.T, m *core.Model) {
				s, _ := m.Shape("example.weather#Forecast")
				assert.False(t, s.HasTrait(core.TraitDocumentation))
			},
		},
		{
			name:   "definition and applications",
			traits: []any{"example.weather#audited"},
			check: func(t *testing.T, m *core.Model) {
				assert.False(t, m.HasShape("example.weather#audited"))
			},
		},
		{
			name:   "namespace",
			traits: []any{"prelude#"},
			check: func(t *testing.T, m *core.Model) {
				for _, s := range m.Shapes() {
					for trait := range s.Traits {
						assert.NotContains(t, trait, "prelude#", s.ID)
					}
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustRun(t, "excludeTraits", core.Settings{"traits": tt.traits}, testutil.WeatherModel()))
		})
	}
}

func TestIncludeNamespaces(t *testing.T) {
	model := testutil.WeatherModel().With(
		core.Shape{ID: "other.ns#Thing", Type: "string"},
		core.Shape{ID: "other.ns#marker", Type: "structure", Traits: map[string]any{core.TraitTrait: map[string]any{}}},
	)

	out := mustRun(t, "includeNamespaces", core.Settings{"namespaces": []any{"example.weather"}}, model)
	assert.False(t, out.HasShape("other.ns#Thing"))
	assert.True(t, out.HasShape("other.ns#marker"), "trait definitions are kept")
	assert.True(t, out.HasShape("example.weather#Weather"))
}

func TestRemoveUnusedShapes(t *testing.T) {
	out := mustRun(t, "removeUnusedShapes", nil, testutil.WeatherModel())
	assert.False(t, out.HasShape("example.weather#AuditRecord"))
	assert.True(t, out.HasShape("example.weather#Chance"))

	kept := mustRun(t, "removeUnusedShapes", core.Settings{"exportTagged": []any{"internal"}}, testutil.WeatherModel())
	assert.True(t, kept.HasShape("example.weather#AuditRecord"))
}

func TestRemoveTraitDefinitions(t *testing.T) {
	out := mustRun(t, "removeTraitDefinitions", nil, testutil.WeatherModel())
	assert.Empty(t, out.TraitDefinitions())
	assert.Equal(t, testutil.WeatherModel().Len()-1, out.Len())
}

func TestRenameShapes(t *testing.T) {
	out := mustRun(t, "renameShapes", core.Settings{
		"renamed": map[string]any{"example.weather#Forecast": "example.weather#Outlook"},
	}, testutil.WeatherModel())

	assert.True(t, out.HasShape("example.weather#Outlook"))
	op, _ := out.Shape("example.weather#GetForecast")
	assert.Equal(t, "example.weather#Outlook", op.Members["output"])

	_, err := run(t, "renameShapes", core.Settings{
		"renamed": map[string]any{"example.weather#Missing": "example.weather#X"},
	}, testutil.WeatherModel())
	assert.ErrorContains(t, err, "not found")

	_, err = run(t, "renameShapes", core.Settings{
		"renamed": map[string]any{"example.weather#Forecast": "example.weather#Chance"},
	}, testutil.WeatherModel())
	assert.ErrorContains(t, err, "existing shape")
}

func TestFlattenNamespaces(t *testing.T) {
	model := testutil.WeatherModel().With(
		core.Shape{ID: "example.common#Region", Type: "string"},
	)
	model = model.With(func() core.Shape {
		s, _ := model.Shape("example.weather#Forecast")
		s.Members["region"] = "example.common#Region"
		return s
	}())

	out := mustRun(t, "flattenNamespaces", core.Settings{
		"namespace": "example.flat",
		"service":   "example.weather#Weather",
	}, model)

	for _, id := range []string{"example.flat#Weather", "example.flat#Forecast", "example.flat#Region"} {
		assert.True(t, out.HasShape(id), id)
	}
	assert.True(t, out.HasShape("example.weather#AuditRecord"), "unconnected shapes stay put")

	_, err := run(t, "flattenNamespaces", core.Settings{"namespace": "x"}, model)
	assert.Error(t, err)
}

func TestSettingsAreValidated(t *testing.T) {
	_, err := run(t, "excludeTraits", core.Settings{"trait": []any{"x"}}, testutil.WeatherModel())
	assert.ErrorContains(t, err, "invalid excludeTraits settings")
}

func TestTransformsDoNotMutateInput(t *testing.T) {
	model := testutil.WeatherModel()
	for _, name := range transforms.NewRegistry().Names() {
		if name == "flattenNamespaces" || name == "renameShapes" {
			continue
		}
		_, err := run(t, name, core.Settings{}, model)
		require.NoError(t, err, name)
	}
	assert.True(t, model.Equal(testutil.WeatherModel()))
}
