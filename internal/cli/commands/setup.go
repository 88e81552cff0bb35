// Package commands implements the leapbuild subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/assembler"
	"github.com/leapstack-labs/leapbuild/internal/cli/output"
	"github.com/leapstack-labs/leapbuild/internal/config"
	"github.com/leapstack-labs/leapbuild/internal/engine"
	"github.com/leapstack-labs/leapbuild/internal/manifest"
	"github.com/leapstack-labs/leapbuild/internal/plugins"
	"github.com/leapstack-labs/leapbuild/internal/state"
	"github.com/leapstack-labs/leapbuild/internal/transforms"
)

// StateDirName is created inside the output directory to hold build history.
// It is not a valid projection name, so no projection output can land in it.
const StateDirName = "~leapbuild"

// loggerKey is used to store the logger in context.
type loggerKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Loaded     *config.Loaded
	Logger     *slog.Logger
	Engine     *engine.Engine
	Renderer   *output.Renderer
	Transforms *transforms.Registry
	Plugins    *plugins.Registry
}

// EngineOptions tunes the engine built for a command.
type EngineOptions struct {
	Parallelism int
}

// NewCommandContext loads the build config and creates an engine from it.
func NewCommandContext(cmd *cobra.Command, opts EngineOptions) (*CommandContext, error) {
	logger := GetLogger(cmd.Context())

	cfgFile, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if loaded.File != "" {
		logger.Debug("using config file", "path", loaded.File)
	}

	fs := afero.NewOsFs()
	transformRegistry := transforms.NewRegistry()
	pluginRegistry := plugins.NewRegistry(fs)

	eng, err := engine.New(engine.Config{
		Build:           loaded.Build,
		Assembler:       assembler.New(fs, assembler.WithLogger(logger)),
		Transformers:    transformRegistry.Get,
		Plugins:         pluginRegistry.Get,
		ManifestFactory: manifest.NewFactory(fs),
		Parallelism:     opts.Parallelism,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	return &CommandContext{
		Loaded:     loaded,
		Logger:     logger,
		Engine:     eng,
		Renderer:   newRenderer(cmd),
		Transforms: transformRegistry,
		Plugins:    pluginRegistry,
	}, nil
}

// StatePath returns the build history database for an output directory.
func StatePath(outputDir string) string {
	return filepath.Join(outputDir, StateDirName, "state.db")
}

// openState opens the build history store beneath outputDir.
func openState(ctx context.Context, outputDir string, logger *slog.Logger) (*state.SQLiteStore, error) {
	path := StatePath(outputDir)
	if err := afero.NewOsFs().MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(ctx, path); err != nil {
		return nil, err
	}
	return store, nil
}

func newRenderer(cmd *cobra.Command) *output.Renderer {
	return output.NewRenderer(cmd.OutOrStdout())
}
