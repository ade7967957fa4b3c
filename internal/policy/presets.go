package policy

import (
	"embed"
	"fmt"
	"sort"
	"sync"
)

//go:embed presets/*.yaml
var presetFS embed.FS

// presetFiles maps preset names to embedded file paths
var presetFiles = map[string]string{
	"baseline": "presets/baseline.yaml",
	"strict":   "presets/strict.yaml",
}

var (
	presetMu    sync.Mutex
	presetCache = map[string]Document{}
)

// GetPreset returns a copy of an embedded org baseline, or nil if not found
func GetPreset(name string) Document {
	presetMu.Lock()
	defer presetMu.Unlock()

	if cached, ok := presetCache[name]; ok {
		return cached.Clone()
	}

	path, ok := presetFiles[name]
	if !ok {
		return nil
	}

	data, err := presetFS.ReadFile(path)
	if err != nil {
		return nil
	}

	doc, err := Parse(data)
	if err != nil {
		return nil
	}

	presetCache[name] = doc
	return doc.Clone()
}

// ListPresetNames sorted
func ListPresetNames() []string {
	names := make([]string, 0, len(presetFiles))
	for name := range presetFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MustGetPreset returns a preset or panics (for tests)
func MustGetPreset(name string) Document {
	p := GetPreset(name)
	if p == nil {
		panic(fmt.Sprintf("preset %q not found", name))
	}
	return p
}
