package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

const yamlConfig = `
version: "1.0"
output_directory: out
sources: [model/]
imports: [shared/*.yaml]
plugins:
  build-info: {}
projections:
  zeta:
    transforms:
      - name: excludeShapesByTag
        args:
          tags: [internal]
    plugins:
      model: {format: yaml}
  alpha.v2:
    abstract: true
    imports: [extra.json]
  mid: {}
`

const jsonConfig = `{
  "version": "1.0",
  "projections": {
    "b": {"plugins": {"model": {}}},
    "a": {"transforms": [{"name": "apply", "args": {"projections": ["b"]}}]}
  }
}`

const tomlConfig = `
version = "1.0"
sources = ["model"]

[plugins.build-info]

[projections.second]
abstract = true

[[projections.second.transforms]]
name = "includeShapesByTag"
args = { tags = ["public"] }

[projections.first.plugins.model]
format = "json"
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "leapbuild.yaml", yamlConfig)
	dir := filepath.Dir(path)

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	cfg := loaded.Build

	assert.Equal(t, path, loaded.File)
	assert.Equal(t, dir, loaded.Dir)
	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDirectory)
	assert.Equal(t, []string{filepath.Join(dir, "model")}, cfg.Sources)
	assert.Equal(t, []string{filepath.Join(dir, "shared/*.yaml")}, cfg.Imports)
	assert.Contains(t, cfg.Plugins, "build-info")

	assert.Equal(t, []string{"zeta", "alpha.v2", "mid"}, cfg.ProjectionOrder)
	assert.Equal(t, []string{"zeta", "alpha.v2", "mid"}, cfg.OrderedProjectionNames())

	zeta := cfg.Projections["zeta"]
	require.Len(t, zeta.Transforms, 1)
	assert.Equal(t, "excludeShapesByTag", zeta.Transforms[0].Name)
	assert.Equal(t, []string{"internal"}, zeta.Transforms[0].Args.StringSlice("tags"))
	assert.Equal(t, core.Settings{"format": "yaml"}, zeta.Plugins["model"])

	alpha := cfg.Projections["alpha.v2"]
	assert.True(t, alpha.Abstract)
	assert.Equal(t, []string{filepath.Join(dir, "extra.json")}, alpha.Imports)
}

func TestLoad_JSON(t *testing.T) {
	loaded, err := Load(writeConfig(t, "leapbuild.json", jsonConfig), nil)
	require.NoError(t, err)

	cfg := loaded.Build
	assert.Equal(t, []string{"b", "a"}, cfg.ProjectionOrder)
	require.Len(t, cfg.Projections["a"].Transforms, 1)
	assert.Equal(t, core.ApplyTransform, cfg.Projections["a"].Transforms[0].Name)
	assert.Equal(t, []string{"b"}, cfg.Projections["a"].Transforms[0].Args.StringSlice("projections"))
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "leapbuild.toml", tomlConfig)

	loaded, err := Load(path, nil)
	require.NoError(t, err)

	cfg := loaded.Build
	assert.Equal(t, []string{"second", "first"}, cfg.ProjectionOrder)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "model")}, cfg.Sources)
	assert.True(t, cfg.Projections["second"].Abstract)
	require.Len(t, cfg.Projections["second"].Transforms, 1)
	assert.Equal(t, []string{"public"}, cfg.Projections["second"].Transforms[0].Args.StringSlice("tags"))
	assert.Equal(t, "json", cfg.Projections["first"].Plugins["model"]["format"])
	assert.Contains(t, cfg.Plugins, "build-info")
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	loaded, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, loaded.File)
	assert.Equal(t, SupportedVersion, loaded.Build.Version)
	assert.Equal(t, filepath.Join(dir, core.DefaultOutputDirectory), loaded.Build.OutputDirectory)
	assert.Empty(t, loaded.Build.Projections)
}

func TestLoad_SearchesUpward(t *testing.T) {
	path := writeConfig(t, "leapbuild.yml", `projections: {only: {}}`)
	nested := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	t.Chdir(nested)

	loaded, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.File)
	assert.Contains(t, loaded.Build.Projections, "only")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "leapbuild.yaml", yamlConfig)
	t.Setenv("LEAPBUILD_OUTPUT_DIRECTORY", "/tmp/from-env")

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env", loaded.Build.OutputDirectory)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	path := writeConfig(t, "leapbuild.yaml", yamlConfig)
	t.Setenv("LEAPBUILD_OUTPUT_DIRECTORY", "/tmp/from-env")
	cwd := t.TempDir()
	t.Chdir(cwd)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "", "")
	flags.Int("parallelism", 0, "")
	require.NoError(t, flags.Parse([]string{"--output", "flag-out", "--parallelism", "3"}))

	loaded, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "flag-out"), loaded.Build.OutputDirectory)
}

func TestLoad_UnsetFlagsAreIgnored(t *testing.T) {
	path := writeConfig(t, "leapbuild.yaml", yamlConfig)
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("output", "ignored", "")

	loaded, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "out"), loaded.Build.OutputDirectory)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("MODEL_ROOT", "/models")
	path := writeConfig(t, "leapbuild.yaml", `
sources: ["${MODEL_ROOT}/main"]
imports: ["${UNSET_LEAPBUILD_VAR}/x.yaml"]
`)

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/models/main"}, loaded.Build.Sources)
	assert.Equal(t, []string{filepath.Join(filepath.Dir(path), "${UNSET_LEAPBUILD_VAR}/x.yaml")}, loaded.Build.Imports)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "unsupported version",
			file:    "leapbuild.yaml",
			content: `version: "2.0"`,
			check: func(t *testing.T, err error) {
				var cfgErr *core.ConfigError
				require.True(t, errors.As(err, &cfgErr))
				assert.Contains(t, err.Error(), "unsupported build config version `2.0`")
			},
		},
		{
			name:    "malformed yaml",
			file:    "leapbuild.yaml",
			content: "projections: [",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "error reading config file")
			},
		},
		{
			name:    "malformed toml",
			file:    "leapbuild.toml",
			content: "projections = [",
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "error reading config file")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content), nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "config file not found")
}

func TestYAMLProjectionOrder_NoProjections(t *testing.T) {
	order, err := yamlProjectionOrder([]byte(`version: "1.0"`))
	require.NoError(t, err)
	assert.Nil(t, order)
}
