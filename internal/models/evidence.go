package models

import "encoding/json"

// Evidence facts gathered by CI, keyed by domain. A nil domain was not
// provided at all.
type Evidence struct {
	Coverage  *CoverageEvidence  `json:"coverage,omitempty"`
	Tests     *TestsEvidence     `json:"tests,omitempty"`
	Security  *SecurityEvidence  `json:"security,omitempty"`
	ADR       *ADREvidence       `json:"adr,omitempty"`
	Integrity *IntegrityEvidence `json:"integrity,omitempty"`
	Meta      *MetaEvidence      `json:"meta,omitempty"`
}

// CoverageEvidence percentages 0..100
type CoverageEvidence struct {
	Line   *float64 `json:"line,omitempty"`
	Branch *float64 `json:"branch,omitempty"`
}

// TestsEvidence summary
type TestsEvidence struct {
	Status  string `json:"status"`
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// SecurityEvidence per scanner kind
type SecurityEvidence struct {
	SAST *FindingsReport `json:"sast,omitempty"`
	SCA  *FindingsReport `json:"sca,omitempty"`
}

// FindingsReport counts by level
type FindingsReport struct {
	Tool   string         `json:"tool,omitempty"`
	Counts SeverityCounts `json:"counts"`
}

// SeverityCounts finding counts
type SeverityCounts struct {
	None     int `json:"none"`
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Highest level with at least one finding; ok is false when there are none.
func (c SeverityCounts) Highest() (level SecurityLevel, ok bool) {
	counts := []int{c.None, c.Low, c.Medium, c.High, c.Critical}
	for i := len(counts) - 1; i >= 0; i-- {
		if counts[i] > 0 {
			return SecurityLevel(i), true
		}
	}
	return LevelNone, false
}

// ADREvidence referenced records
type ADREvidence struct {
	Referenced []string             `json:"referenced"`
	Records    map[string]ADRRecord `json:"records,omitempty"`
}

// ADRRecord front-matter summary produced by the ADR adapter
type ADRRecord struct {
	Status string `json:"status"`
	Valid  bool   `json:"valid"`
	Title  string `json:"title,omitempty"`
}

// IntegrityEvidence supply-chain facts
type IntegrityEvidence struct {
	SignedArtifacts *bool    `json:"signed_artifacts,omitempty"`
	SBOMPresent     *bool    `json:"sbom_present,omitempty"`
	Images          []string `json:"images,omitempty"`
}

// MetaEvidence about the change itself
type MetaEvidence struct {
	Repository   string   `json:"repository,omitempty"`
	Branch       string   `json:"branch,omitempty"`
	TargetEnv    string   `json:"target_env,omitempty"`
	Event        string   `json:"event,omitempty"`
	Commit       string   `json:"commit,omitempty"`
	ChangedFiles []string `json:"changed_files,omitempty"`
}

// UnmarshalJSON also accepts flattened "security.sast" / "security.sca" keys.
func (e *Evidence) UnmarshalJSON(data []byte) error {
	type plain Evidence
	var aux struct {
		plain
		FlatSAST *FindingsReport `json:"security.sast,omitempty"`
		FlatSCA  *FindingsReport `json:"security.sca,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = Evidence(aux.plain)
	if aux.FlatSAST != nil || aux.FlatSCA != nil {
		if e.Security == nil {
			e.Security = &SecurityEvidence{}
		}
		if aux.FlatSAST != nil && e.Security.SAST == nil {
			e.Security.SAST = aux.FlatSAST
		}
		if aux.FlatSCA != nil && e.Security.SCA == nil {
			e.Security.SCA = aux.FlatSCA
		}
	}
	return nil
}

// ToMap generic form of the evidence, used as CEL input
func (e Evidence) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
