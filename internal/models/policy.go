package models

// Policy typed view of a policy document
type Policy struct {
	PolicyVersion string                `yaml:"policy_version" json:"policy_version"`
	Mode          Mode                  `yaml:"mode,omitempty" json:"mode,omitempty"`
	Extends       string                `yaml:"extends,omitempty" json:"extends,omitempty"`
	CoverageMin   *float64              `yaml:"coverage_min,omitempty" json:"coverage_min,omitempty"`
	Rules         map[string]RuleConfig `yaml:"rules" json:"rules"`
}

// RuleConfig params for one rule. Families read the params they know;
// anything else lands in Extra.
type RuleConfig struct {
	Severity         Severity `yaml:"severity" json:"severity"`
	RequiresEvidence bool     `yaml:"requires_evidence" json:"requires_evidence"`
	Description      string   `yaml:"description,omitempty" json:"description,omitempty"`

	// coverage
	Threshold *float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	Metric    string   `yaml:"metric,omitempty" json:"metric,omitempty"`

	// security
	MaxSeverity  string `yaml:"max_severity,omitempty" json:"max_severity,omitempty"`
	WarnSeverity string `yaml:"warn_severity,omitempty" json:"warn_severity,omitempty"`
	Scanner      string `yaml:"scanner,omitempty" json:"scanner,omitempty"`

	// adr
	Required      *bool    `yaml:"required,omitempty" json:"required,omitempty"`
	RequiredPaths []string `yaml:"required_paths,omitempty" json:"required_paths,omitempty"`

	// supplychain / integrity
	RequireSigned       *bool    `yaml:"require_signed,omitempty" json:"require_signed,omitempty"`
	RequireSBOM         *bool    `yaml:"require_sbom,omitempty" json:"require_sbom,omitempty"`
	RequirePinnedImages bool     `yaml:"require_pinned_images,omitempty" json:"require_pinned_images,omitempty"`
	AllowedRegistries   []string `yaml:"allowed_registries,omitempty" json:"allowed_registries,omitempty"`
	ReleaseBranches     []string `yaml:"release_branches,omitempty" json:"release_branches,omitempty"`
	TargetEnvs          []string `yaml:"target_envs,omitempty" json:"target_envs,omitempty"`

	// custom
	Expr       string `yaml:"expr,omitempty" json:"expr,omitempty"`
	FailureMsg string `yaml:"failure_msg,omitempty" json:"failure_msg,omitempty"`

	Extra map[string]interface{} `yaml:",inline" json:"-"`
}

// Provenance of a merged field
type Provenance string

const (
	FromBase     Provenance = "base"
	FromOverride Provenance = "override"
	FromMerged   Provenance = "merged"
)

// EffectivePolicy is the merged org baseline plus repo override.
// Document is the merged generic form, Policy its typed view.
type EffectivePolicy struct {
	Policy     Policy
	Document   map[string]interface{}
	Provenance map[string]Provenance
}
