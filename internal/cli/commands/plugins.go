package commands

import (
	"slices"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapbuild/internal/plugins"
	"github.com/leapstack-labs/leapbuild/internal/transforms"
	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// ExtensionsJSON lists registered transforms and plugins.
type ExtensionsJSON struct {
	Transforms []string     `json:"transforms"`
	Plugins    []PluginJSON `json:"plugins"`
}

// PluginJSON describes a registered plugin.
type PluginJSON struct {
	Name               string `json:"name"`
	Serial             bool   `json:"serial"`
	RequiresValidModel bool   `json:"requires_valid_model"`
}

// NewPluginsCommand creates the plugins command.
func NewPluginsCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List available transforms and plugins",
		RunE: func(cmd *cobra.Command, _ []string) error {
			transformRegistry := transforms.NewRegistry()
			pluginRegistry := plugins.NewRegistry(afero.NewOsFs())

			ext := ExtensionsJSON{
				Transforms: append(transformRegistry.Names(), core.ApplyTransform),
				Plugins:    []PluginJSON{},
			}
			slices.Sort(ext.Transforms)
			for _, name := range pluginRegistry.Names() {
				p, _ := pluginRegistry.Get(name)
				ext.Plugins = append(ext.Plugins, PluginJSON{
					Name:               name,
					Serial:             p.Serial(),
					RequiresValidModel: p.RequiresValidModel(),
				})
			}

			r := newRenderer(cmd)
			if jsonOut {
				return r.JSON(ext)
			}

			r.Header("Transforms")
			for _, name := range ext.Transforms {
				r.Printf("  %s %s\n", r.Styles().Bullet, r.Styles().Name.Render(name))
			}
			r.Println()
			r.Header("Plugins")
			rows := make([][]string, 0, len(ext.Plugins))
			for _, p := range ext.Plugins {
				rows = append(rows, []string{p.Name, strconv.FormatBool(p.Serial), strconv.FormatBool(p.RequiresValidModel)})
			}
			r.Table([]string{"Plugin", "Serial", "Requires Valid Model"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
