package waiver

import (
	"fmt"
	"os"

	"github.com/govgate/govgate/internal/models"
	"gopkg.in/yaml.v3"
)

// Parse a waiver file: either a list or a mapping with a "waivers" list.
// JSON works too.
func Parse(data []byte) ([]models.Waiver, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse waivers: %w", err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	doc := root.Content[0]

	var waivers []models.Waiver
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&waivers); err != nil {
			return nil, fmt.Errorf("failed to decode waivers: %w", err)
		}
	case yaml.MappingNode:
		var wrapped struct {
			Waivers []models.Waiver `yaml:"waivers"`
		}
		if err := doc.Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode waivers: %w", err)
		}
		waivers = wrapped.Waivers
	default:
		return nil, fmt.Errorf("waivers must be a list or a mapping with a waivers key")
	}
	return waivers, nil
}

// LoadFile reads waivers from disk. A missing path means no waivers.
func LoadFile(path string) ([]models.Waiver, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read waivers file: %w", err)
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}
