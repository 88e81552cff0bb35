package plugins

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// ModelDocument is the serialized form of a model, shared with the
// assembler's model file format.
type ModelDocument struct {
	Version string       `json:"version" yaml:"version"`
	Shapes  []core.Shape `json:"shapes" yaml:"shapes"`
}

// ModelPlugin serializes the projected model.
//
// Settings:
//
//	format: json (default) or yaml
type ModelPlugin struct{}

func (*ModelPlugin) Name() string             { return "model" }
func (*ModelPlugin) Serial() bool             { return false }
func (*ModelPlugin) RequiresValidModel() bool { return true }

func (p *ModelPlugin) Execute(_ context.Context, pc *core.PluginContext) error {
	var cfg struct {
		Format string `mapstructure:"format"`
	}
	if err := decode(p.Name(), pc.Settings, &cfg); err != nil {
		return err
	}

	doc := ModelDocument{Version: "1.0", Shapes: pc.Model.Shapes()}

	var (
		data []byte
		file string
		err  error
	)
	switch cfg.Format {
	case "", "json":
		file = "model.json"
		data, err = json.MarshalIndent(doc, "", "  ")
	case "yaml":
		file = "model.yaml"
		data, err = yaml.Marshal(doc)
	default:
		return fmt.Errorf("unsupported model format %q", cfg.Format)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}

	_, err = pc.Manifest.WriteFile(file, data)
	return err
}
