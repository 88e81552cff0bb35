package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// yamlProjectionOrder returns the keys of the top-level projections mapping
// in file order. JSON documents are parsed as YAML.
func yamlProjectionOrder(data []byte) ([]string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unable to read projection order: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, nil
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "projections" {
			continue
		}
		projections := root.Content[i+1]
		if projections.Kind != yaml.MappingNode {
			return nil, nil
		}
		names := make([]string, 0, len(projections.Content)/2)
		for j := 0; j+1 < len(projections.Content); j += 2 {
			names = append(names, projections.Content[j].Value)
		}
		return names, nil
	}
	return nil, nil
}

// tomlProjectionOrder returns projection names in the order their tables
// were first defined.
func tomlProjectionOrder(md toml.MetaData) []string {
	seen := make(map[string]bool)
	var names []string
	for _, key := range md.Keys() {
		if len(key) < 2 || key[0] != "projections" || seen[key[1]] {
			continue
		}
		seen[key[1]] = true
		names = append(names, key[1])
	}
	return names
}
