// Package policy loads, merges and validates governance policies.
package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/govgate/govgate/internal/models"
	"gopkg.in/yaml.v3"
)

// Document generic policy tree, as loaded from YAML or JSON
type Document map[string]interface{}

// ExtendsNone opts a repository policy out of the org baseline
const ExtendsNone = "none"

// Parse YAML (or JSON, which yaml.v3 also reads)
func Parse(data []byte) (Document, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, NewConfigurationError(fmt.Sprintf("failed to parse policy: %v", err))
	}
	if raw == nil {
		return Document{}, nil
	}
	m, ok := normalize(raw).(map[string]interface{})
	if !ok {
		return nil, NewConfigurationError(fmt.Sprintf("policy must be a mapping, got %T", raw))
	}
	return Document(m), nil
}

// LoadFile reads a policy document from disk
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Decode typed view of a document
func Decode(doc Document) (models.Policy, error) {
	data, err := yaml.Marshal(map[string]interface{}(doc))
	if err != nil {
		return models.Policy{}, NewConfigurationError(fmt.Sprintf("failed to encode policy: %v", err))
	}
	var p models.Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return models.Policy{}, NewConfigurationError(fmt.Sprintf("failed to decode policy: %v", err))
	}
	if p.Rules == nil {
		p.Rules = map[string]models.RuleConfig{}
	}
	return p, nil
}

// Extends value, lowercased
func (d Document) Extends() string {
	s, _ := d["extends"].(string)
	return strings.ToLower(strings.TrimSpace(s))
}

// RuleIDs sorted
func (d Document) RuleIDs() []string {
	rules, _ := d["rules"].(map[string]interface{})
	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone deep copy
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(deepCopy(map[string]interface{}(d)).(map[string]interface{}))
}

// JSON indented, keys sorted
func (d Document) JSON() ([]byte, error) {
	return json.MarshalIndent(map[string]interface{}(d), "", "  ")
}

// normalize yaml.v3 output so every mapping has string keys
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case Document:
		return deepCopy(map[string]interface{}(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
