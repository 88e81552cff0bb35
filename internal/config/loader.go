// Package config loads build configurations.
//
// Values are layered, lowest precedence first: defaults, the config file
// (YAML, JSON or TOML), LEAPBUILD_ environment variables, then explicitly
// set CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// Loaded is a build config together with where it came from.
type Loaded struct {
	Build *core.BuildConfig
	// File is the config file used, or empty when none was found.
	File string
	// Dir is the directory relative paths were resolved against.
	Dir string
}

// Load loads the build config. path names the config file explicitly; when
// empty, the config file is searched for upward from the working directory
// and defaults are used if none exists. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Loaded, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if path == "" {
		path = FindConfigFile(cwd)
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	dir := cwd
	if path != "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %s: %w", path, err)
		}
		path = abs
		dir = filepath.Dir(abs)
	}

	k := koanf.New(delim)

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), delim), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	var order []string
	if path != "" {
		order, err = loadFile(k, path)
		if err != nil {
			return nil, err
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, delim, func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (only those explicitly set)
	var flagOutput bool
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, delim, k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			if key == "output_directory" {
				flagOutput = true
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg core.BuildConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectionOrder = order

	if cfg.Version != SupportedVersion {
		return nil, core.NewConfigError("unsupported build config version `%s`, expected `%s`", cfg.Version, SupportedVersion)
	}

	resolvePaths(&cfg, dir, cwd, flagOutput)

	return &Loaded{Build: &cfg, File: path, Dir: dir}, nil
}

// loadFile loads the config file into k and returns the projection
// declaration order.
func loadFile(k *koanf.Koanf, path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var raw map[string]any
		md, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		if err := k.Load(confmap.Provider(raw, ""), nil); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		return tomlProjectionOrder(md), nil

	case ".json":
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}

	default:
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return yamlProjectionOrder(data)
}

// FindConfigFile searches startDir and its parents for a config file.
// Returns empty string if not found within maxUpwardSearchLevels.
func FindConfigFile(startDir string) string {
	dir := startDir
	for range maxUpwardSearchLevels {
		for _, name := range ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// resolvePaths expands ${VAR} references and resolves relative paths against
// baseDir. An output directory given as a flag resolves against cwd.
func resolvePaths(cfg *core.BuildConfig, baseDir, cwd string, outputFromFlag bool) {
	outputBase := baseDir
	if outputFromFlag {
		outputBase = cwd
	}
	cfg.OutputDirectory = resolvePathRelativeTo(expandEnvVars(cfg.OutputDirectory), outputBase)
	cfg.Sources = resolveAll(cfg.Sources, baseDir)
	cfg.Imports = resolveAll(cfg.Imports, baseDir)
	for name, p := range cfg.Projections {
		p.Imports = resolveAll(p.Imports, baseDir)
		cfg.Projections[name] = p
	}
}

func resolveAll(paths []string, baseDir string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = resolvePathRelativeTo(expandEnvVars(p), baseDir)
	}
	return out
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}
