package commands

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapbuild/internal/assembler"
	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/engine"
	"github.com/leapstack-labs/leapbuild/internal/testutil"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

func TestNewBuildCommand(t *testing.T) {
	cmd := NewBuildCommand()

	assert.Equal(t, "build", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"projection", "plugin", "output", "parallelism", "watch", "trace", "otlp-endpoint", "json", "no-history"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
	assert.Equal(t, "p", cmd.Flags().Lookup("projection").Shorthand)
	assert.Equal(t, "stdout", cmd.Flags().Lookup("trace").NoOptDefVal)
}

func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	assert.Equal(t, "validate", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("models"))
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestNewGraphCommand(t *testing.T) {
	cmd := NewGraphCommand()

	assert.Equal(t, "graph", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotNil(t, cmd.Flags().Lookup("json"))
}

func TestNewPluginsCommand(t *testing.T) {
	cmd := NewPluginsCommand()

	assert.Equal(t, "plugins", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
}

func TestNewHistoryCommand(t *testing.T) {
	cmd := NewHistoryCommand()

	assert.Equal(t, "history [run-id]", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotNil(t, cmd.Flags().Lookup("limit"))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
}

func TestStatePath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "~leapbuild", "state.db"), StatePath("out"))
	assert.False(t, engine.ValidName(StateDirName), "state directory must not collide with a projection")
}

func newResult(name string, broken bool) *core.ProjectionResult {
	var events []core.ValidationEvent
	if broken {
		events = []core.ValidationEvent{{ID: "Target", Severity: core.SeverityError, Message: "bad"}}
	}
	events = append(events, core.ValidationEvent{ID: "Trait", Severity: core.SeverityWarning, Message: "hmm"})
	return core.NewProjectionResult(name, testutil.WeatherModel(), events, nil)
}

func TestReportError(t *testing.T) {
	clean := &engine.BuildReport{Results: []*core.ProjectionResult{newResult("a", false)}}
	assert.NoError(t, reportError(clean))

	boom := errors.New("boom")
	report := &engine.BuildReport{
		Results:  []*core.ProjectionResult{newResult("a", false), newResult("b", true)},
		Failures: []engine.ProjectionFailure{{Projection: "c", Err: boom}},
	}
	err := reportError(report)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBuildFailed)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "1 projection(s) failed")
	assert.Contains(t, err.Error(), "validation errors: b")
}

func TestSummarize(t *testing.T) {
	report := &engine.BuildReport{
		Results:  []*core.ProjectionResult{newResult("b", true), newResult("a", false)},
		Failures: []engine.ProjectionFailure{{Projection: "0-first", Err: errors.New("panic: x\nstack")}},
	}

	s := summarize(report)
	require.Len(t, s.Projections, 3)
	assert.True(t, s.Failed)

	names := []string{s.Projections[0].Projection, s.Projections[1].Projection, s.Projections[2].Projection}
	assert.Equal(t, []string{"0-first", "a", "b"}, names)

	assert.True(t, s.Projections[0].Failed)
	assert.Equal(t, []string{}, s.Projections[0].Plugins)

	a := s.Projections[1]
	assert.False(t, a.Broken)
	assert.Equal(t, testutil.WeatherModel().Len(), a.Shapes)
	assert.Equal(t, 0, a.Errors)
	assert.Equal(t, 1, a.Warnings)

	b := s.Projections[2]
	assert.True(t, b.Broken)
	assert.Equal(t, 1, b.Errors)
}

func TestProjectionRecords(t *testing.T) {
	report := &engine.BuildReport{
		Results:  []*core.ProjectionResult{newResult("a", false), newResult("b", true)},
		Failures: []engine.ProjectionFailure{{Projection: "c", Err: errors.New("boom")}},
	}

	records := projectionRecords("run-1", report)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, "run-1", rec.RunID)
	}
	assert.Equal(t, "success", string(records[0].Status))
	assert.Equal(t, "broken", string(records[1].Status))
	assert.Equal(t, 1, records[1].Errors)
	assert.Equal(t, "failed", string(records[2].Status))
	assert.Equal(t, "boom", records[2].Error)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "panic: x", firstLine(errors.New("panic: x\ngoroutine 1")))
	assert.Equal(t, "plain", firstLine(errors.New("plain")))
}

func TestWatchPaths(t *testing.T) {
	eng, err := engine.New(engine.Config{
		Build: &core.BuildConfig{
			Sources: []string{"/p/model"},
			Imports: []string{"/p/shared/**/*.json"},
			Projections: map[string]core.ProjectionConfig{
				"a": {Imports: []string{"/p/extra.yaml"}},
			},
		},
		Assembler: assembler.New(afero.NewMemMapFs()),
	})
	require.NoError(t, err)

	cmdCtx := &CommandContext{Loaded: &config.Loaded{File: "/p/leapbuild.yaml"}, Engine: eng}
	assert.Equal(t, []string{"/p/extra.yaml", "/p/leapbuild.yaml", "/p/model", "/p/shared"}, watchPaths(cmdCtx))
}
