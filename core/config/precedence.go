package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"basegraph.app/refactor/internal/model"
)

// precedenceFile is the on-disk form of a precedence order:
//
//	version: v2
//	order: [architecture, performance, style]
type precedenceFile struct {
	Version string   `yaml:"version"`
	Order   []string `yaml:"order"`
}

// LoadPrecedenceFile reads a versioned precedence order from YAML. The version
// is required so persisted runs can name the order they were merged under.
func LoadPrecedenceFile(path string) (model.Precedence, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Precedence{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var file precedenceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return model.Precedence{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if file.Version == "" {
		return model.Precedence{}, fmt.Errorf("%s: missing version", path)
	}

	order := make([]model.Capability, 0, len(file.Order))
	for _, name := range file.Order {
		c, err := model.ParseCapability(name)
		if err != nil {
			return model.Precedence{}, fmt.Errorf("%s: %w", path, err)
		}
		order = append(order, c)
	}

	return model.NewPrecedence(file.Version, order)
}
