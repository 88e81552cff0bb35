package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapbuild/pkg/core"
)

// BuildInfo describes one built projection.
type BuildInfo struct {
	Version          string                 `json:"version"`
	ProjectionName   string                 `json:"projectionName"`
	Projection       core.ProjectionConfig  `json:"projection"`
	ValidationEvents []core.ValidationEvent `json:"validationEvents"`
	TraitNames       []string               `json:"traitNames"`
	ServiceShapeIDs  []string               `json:"serviceShapeIds"`
	OperationIDs     []string               `json:"operationShapeIds"`
	ShapeCount       int                    `json:"shapeCount"`
}

// BuildInfoPlugin writes build-info.json describing the projection. It runs
// for broken models too, so validation events are always recorded.
type BuildInfoPlugin struct{}

func (*BuildInfoPlugin) Name() string             { return "build-info" }
func (*BuildInfoPlugin) Serial() bool             { return false }
func (*BuildInfoPlugin) RequiresValidModel() bool { return false }

func (p *BuildInfoPlugin) Execute(_ context.Context, pc *core.PluginContext) error {
	info := BuildInfo{
		Version:          "1.0",
		ProjectionName:   pc.ProjectionName,
		Projection:       pc.Projection,
		ValidationEvents: pc.Events,
		TraitNames:       []string{},
		ServiceShapeIDs:  []string{},
		OperationIDs:     []string{},
		ShapeCount:       pc.Model.Len(),
	}
	if info.ValidationEvents == nil {
		info.ValidationEvents = []core.ValidationEvent{}
	}

	traits := make(map[string]struct{})
	for _, s := range pc.Model.Shapes() {
		for trait := range s.Traits {
			traits[trait] = struct{}{}
		}
		switch s.Type {
		case "service":
			info.ServiceShapeIDs = append(info.ServiceShapeIDs, s.ID)
		case "operation":
			info.OperationIDs = append(info.OperationIDs, s.ID)
		}
	}
	for trait := range traits {
		info.TraitNames = append(info.TraitNames, trait)
	}
	slices.Sort(info.TraitNames)

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize build info: %w", err)
	}
	_, err = pc.Manifest.WriteFile("build-info.json", data)
	return err
}
