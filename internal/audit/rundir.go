// Package audit writes the immutable run directory of one evaluation and
// exports it as a deterministic zip bundle.
package audit

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/govgate/govgate/internal/canonical"
	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/version"
)

const ManifestSchemaVersion = "1.0"

// Run directory file names
const (
	DecisionFile  = "decision.json"
	SignatureFile = "decision.json.sig"
	PolicyFile    = "policy.json"
	InputsFile    = "inputs.json"
	WaiversFile   = "waivers.json"
	ManifestFile  = "manifest.json"
)

// ErrRunExists a run directory is written once
var ErrRunExists = errors.New("run directory already contains")

// IntegrityError a file no longer matches the manifest
type IntegrityError struct {
	File   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit integrity: %s: %s", e.File, e.Reason)
}

// Run everything one evaluation read and produced
type Run struct {
	Decision  models.Decision
	Policy    map[string]interface{}
	Inputs    interface{}
	Waivers   []models.Waiver
	Signature []byte // optional decision.json.sig content
}

// Manifest of a run directory
type Manifest struct {
	SchemaVersion  string      `json:"schema_version"`
	ToolVersion    string      `json:"tool_version"`
	CanonVersion   string      `json:"canon_version"`
	DecisionDigest string      `json:"decision_digest"`
	Status         string      `json:"status"`
	PolicyVersion  string      `json:"policy_version"`
	Files          []FileEntry `json:"files"`
}

// FileEntry hashed file
type FileEntry struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// WriteRun creates dir and writes the run into it. Existing files are never
// replaced; the manifest is written last so a partial run has none.
func WriteRun(dir string, run Run) (*Manifest, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
		return nil, fmt.Errorf("%w %s", ErrRunExists, ManifestFile)
	}

	decisionBytes, err := run.Decision.Canonical()
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize decision: %w", err)
	}

	waivers := run.Waivers
	if waivers == nil {
		waivers = []models.Waiver{}
	}
	files := []struct {
		name  string
		value interface{}
	}{
		{PolicyFile, run.Policy},
		{InputsFile, run.Inputs},
		{WaiversFile, waivers},
	}

	manifest := &Manifest{
		SchemaVersion:  ManifestSchemaVersion,
		ToolVersion:    version.BuildVersion(),
		CanonVersion:   canonical.Version,
		DecisionDigest: canonical.HashBytes(decisionBytes),
		Status:         string(run.Decision.Status),
		PolicyVersion:  run.Decision.PolicyVersion,
	}

	if err := manifest.add(dir, DecisionFile, decisionBytes); err != nil {
		return nil, err
	}
	for _, f := range files {
		data, err := canonical.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("failed to canonicalize %s: %w", f.name, err)
		}
		if err := manifest.add(dir, f.name, data); err != nil {
			return nil, err
		}
	}
	if len(run.Signature) > 0 {
		if err := manifest.add(dir, SignatureFile, run.Signature); err != nil {
			return nil, err
		}
	}

	sort.Slice(manifest.Files, func(i, j int) bool {
		return manifest.Files[i].Name < manifest.Files[j].Name
	})
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize manifest: %w", err)
	}
	if err := createExclusive(filepath.Join(dir, ManifestFile), append(data, '\n')); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (m *Manifest) add(dir, name string, data []byte) error {
	if err := createExclusive(filepath.Join(dir, name), data); err != nil {
		return err
	}
	m.Files = append(m.Files, FileEntry{Name: name, SHA256: sha256Hex(data), Size: int64(len(data))})
	return nil
}

func createExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0444)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w %s", ErrRunExists, filepath.Base(path))
		}
		return fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// ReadManifest of a run directory
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// VerifyRun re-hashes every manifest entry and the decision digest
func VerifyRun(dir string) (*Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	for _, f := range m.Files {
		data, err := os.ReadFile(filepath.Join(dir, f.Name))
		if err != nil {
			return nil, &IntegrityError{File: f.Name, Reason: "missing"}
		}
		if got := sha256Hex(data); got != f.SHA256 {
			return nil, &IntegrityError{File: f.Name, Reason: fmt.Sprintf("sha256 %s, manifest says %s", got, f.SHA256)}
		}
		if f.Name == DecisionFile && canonical.HashBytes(data) != m.DecisionDigest {
			return nil, &IntegrityError{File: f.Name, Reason: "decision digest mismatch"}
		}
	}
	return m, nil
}

func sha256Hex(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
