// Package receipt writes one audit receipt per govgate command: what ran,
// with which inputs, and what the gate decided.
package receipt

const ReceiptSchemaVersion = "1.0"

// Receipt of one command invocation
type Receipt struct {
	SchemaVersion string           `json:"schema_version"`
	OpID          string           `json:"op_id"`
	TsStart       string           `json:"ts_start"`
	TsEnd         string           `json:"ts_end"`
	Command       string           `json:"command"`
	Args          []string         `json:"args"`
	ArgsRedacted  bool             `json:"args_redacted,omitempty"`
	Result        Result           `json:"result"`
	Inputs        []InputRef       `json:"inputs,omitempty"`
	Decision      *DecisionSummary `json:"decision,omitempty"`
	RunDir        string           `json:"run_dir,omitempty"`
}

// Result of the command itself, not of the gate
type Result struct {
	Status string `json:"status"` // success|fail
	Error  string `json:"error,omitempty"`
}

// InputRef one file the command read
type InputRef struct {
	Role   string `json:"role"` // policy|base|evidence|waivers
	Path   string `json:"path"`
	SHA256 string `json:"sha256,omitempty"`
}

// DecisionSummary the parts of a decision worth keeping next to the run
type DecisionSummary struct {
	Status          string   `json:"status"`
	Score           int      `json:"score"`
	PolicyVersion   string   `json:"policy_version,omitempty"`
	Digest          string   `json:"digest,omitempty"`
	Blocking        []string `json:"blocking,omitempty"`
	Waived          []string `json:"waived,omitempty"`
	MissingEvidence []string `json:"missing_evidence,omitempty"`
}
