package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/policy"
)

// policySources where the two sides of a merge come from
type policySources struct {
	PolicyPath string
	BasePath   string
	Preset     string
	FloorPath  string
}

// policySet the loaded base and the merged result
type policySet struct {
	Base       policy.Document
	BaseName   string
	Override   policy.Document
	Effective  *models.EffectivePolicy
	inputPaths map[string]string
}

// loadBase picks the baseline: --base, then --preset, then the override's
// own extends (a preset name or a path next to the policy file).
func loadBase(src policySources, override policy.Document) (policy.Document, string, error) {
	if src.BasePath != "" && src.Preset != "" {
		return nil, "", policy.NewConfigurationError("--base and --preset are mutually exclusive")
	}
	if src.BasePath != "" {
		doc, err := policy.LoadFile(src.BasePath)
		return doc, src.BasePath, err
	}

	name := src.Preset
	ext := override.Extends()
	if name == "" && ext == policy.ExtendsNone {
		return policy.Document{}, policy.ExtendsNone, nil
	}
	if name == "" {
		name = ext
	}
	if name == "" {
		return policy.Document{}, "", nil
	}
	if doc := policy.GetPreset(name); doc != nil {
		return doc, "preset:" + name, nil
	}
	if src.Preset != "" {
		return nil, "", policy.NewConfigurationError(fmt.Sprintf("unknown preset %q (available: %s)", name, strings.Join(policy.ListPresetNames(), ", ")))
	}

	// extends: ./org.yaml resolves against the policy file
	path := name
	if !filepath.IsAbs(path) && src.PolicyPath != "" {
		path = filepath.Join(filepath.Dir(src.PolicyPath), path)
	}
	doc, err := policy.LoadFile(path)
	if err != nil {
		return nil, "", policy.NewConfigurationError(fmt.Sprintf("extends %q: %v", name, err))
	}
	return doc, path, nil
}

// loadPolicies reads and merges. Merge violations come back unwrapped so
// errors.As finds them.
func loadPolicies(src policySources) (*policySet, error) {
	if src.PolicyPath == "" {
		return nil, policy.NewConfigurationError("--policy is required")
	}
	override, err := policy.LoadFile(src.PolicyPath)
	if err != nil {
		return nil, err
	}
	base, baseName, err := loadBase(src, override)
	if err != nil {
		return nil, err
	}

	var opts []policy.ResolverOption
	if src.FloorPath != "" {
		floor, err := policy.LoadFile(src.FloorPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, policy.WithFloor(floor))
	}
	effective, err := policy.NewResolver(opts...).Merge(base, override)
	if err != nil {
		return nil, err
	}

	paths := map[string]string{"policy": src.PolicyPath}
	if !strings.HasPrefix(baseName, "preset:") && baseName != policy.ExtendsNone && baseName != "" {
		paths["base"] = baseName
	}
	if src.FloorPath != "" {
		paths["floor"] = src.FloorPath
	}
	return &policySet{
		Base:       base,
		BaseName:   baseName,
		Override:   override,
		Effective:  effective,
		inputPaths: paths,
	}, nil
}

// loadEvidence reads the evidence bundle. "-" is stdin.
func loadEvidence(path string) (models.Evidence, error) {
	var data []byte
	var err error
	switch path {
	case "":
		return models.Evidence{}, usageError(fmt.Errorf("--evidence is required"))
	case "-":
		var buf bytes.Buffer
		_, err = buf.ReadFrom(os.Stdin)
		data = buf.Bytes()
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return models.Evidence{}, usageError(fmt.Errorf("failed to read evidence: %w", err))
	}

	var ev models.Evidence
	if err := json.Unmarshal(data, &ev); err != nil {
		return models.Evidence{}, usageError(fmt.Errorf("invalid evidence JSON: %w", err))
	}
	return ev, nil
}

// parseNow --now, or the wall clock once, truncated to seconds
func parseNow(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, usageError(fmt.Errorf("--now must be RFC 3339: %w", err))
	}
	return t.UTC(), nil
}
