package policy

import (
	"testing"
)

// TestEmbeddedPresetFilesExist fails when the //go:embed directive or the
// preset file paths drift apart.
func TestEmbeddedPresetFilesExist(t *testing.T) {
	for name, path := range presetFiles {
		t.Run(name, func(t *testing.T) {
			data, err := presetFS.ReadFile(path)
			if err != nil {
				t.Fatalf("failed to read embedded file %q: %v (check //go:embed directive)", path, err)
			}
			if len(data) < 10 {
				t.Errorf("embedded file %q suspiciously small (%d bytes)", path, len(data))
			}
		})
	}
}

func TestGetPreset_BaselineAndStrict(t *testing.T) {
	for _, name := range ListPresetNames() {
		t.Run(name, func(t *testing.T) {
			preset := GetPreset(name)
			if preset == nil {
				t.Fatalf("GetPreset(%q) returned nil", name)
			}
			p, err := Decode(preset)
			if err != nil {
				t.Fatalf("Decode(%q): %v", name, err)
			}
			if p.PolicyVersion == "" {
				t.Errorf("preset %q has empty policy_version", name)
			}
			if len(p.Rules) == 0 {
				t.Errorf("preset %q has no rules", name)
			}
		})
	}
}

func TestGetPreset_ReturnsCopy(t *testing.T) {
	a := MustGetPreset("baseline")
	a["mode"] = "tampered"

	b := MustGetPreset("baseline")
	if b["mode"] == "tampered" {
		t.Fatal("GetPreset shares state between callers")
	}
}

func TestGetPreset_Unknown(t *testing.T) {
	if GetPreset("nope") != nil {
		t.Fatal("expected nil for unknown preset")
	}
}

// TestStrictExtendsBaseline the strict profile must be a valid tightening of
// the baseline, otherwise teams cannot move from one to the other.
func TestStrictExtendsBaseline(t *testing.T) {
	if _, err := Merge(MustGetPreset("baseline"), MustGetPreset("strict")); err != nil {
		t.Fatalf("strict does not tighten baseline: %v", err)
	}
}
