package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/config"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version       string `json:"version"`
	ConfigVersion string `json:"config_version"`
	GoVersion     string `json:"go_version"`
	Platform      string `json:"platform"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the leapbuild version and the build config format it reads.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{
				Version:       version,
				ConfigVersion: config.SupportedVersion,
				GoVersion:     runtime.Version(),
				Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			}
			r := newRenderer(cmd)
			if asJSON {
				return r.JSON(info)
			}
			r.Printf("leapbuild v%s\n", info.Version)
			r.Printf("config format %s, %s %s\n", info.ConfigVersion, info.GoVersion, info.Platform)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
