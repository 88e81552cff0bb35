package config

import "github.com/leapstack-labs/leapbuild/pkg/core"

// ConfigFileNames are searched in order when no config file is given.
var ConfigFileNames = []string{"leapbuild.yaml", "leapbuild.yml", "leapbuild.json", "leapbuild.toml"}

// SupportedVersion is the only accepted config version.
const SupportedVersion = "1.0"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// delim separates koanf key paths. Projection and plugin names may contain
// dots, so the usual "." cannot be used.
const delim = "/"

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "LEAPBUILD_"

// envKeys maps the supported environment variables to config keys.
var envKeys = map[string]string{
	EnvPrefix + "VERSION":          "version",
	EnvPrefix + "OUTPUT_DIRECTORY": "output_directory",
}

// flagKeys maps CLI flag names to config keys.
var flagKeys = map[string]string{
	"output": "output_directory",
}

func defaults() map[string]any {
	return map[string]any{
		"version":          SupportedVersion,
		"output_directory": core.DefaultOutputDirectory,
	}
}
