package models

import "github.com/govgate/govgate/internal/canonical"

// RuleResult outcome of one rule. MissingEvidence implies Result == fail.
type RuleResult struct {
	ID              string   `json:"id"`
	Severity        Severity `json:"severity"`
	Result          Outcome  `json:"result"`
	Waived          bool     `json:"waived"`
	Message         string   `json:"message"`
	MissingEvidence bool     `json:"missing_evidence"`
}

// Blocking is an unwaived block-severity failure
func (r RuleResult) Blocking() bool {
	return r.Severity == SeverityBlock && r.Result == OutcomeFail && !r.Waived
}

// Decision of one gate evaluation. Built once by the gate package and
// treated as a value afterwards; nothing in govgate writes to a Decision
// after it is returned.
type Decision struct {
	Status          Status       `json:"status"`
	Score           int          `json:"score"`
	Rules           []RuleResult `json:"rules"`
	WaiversUsed     []Waiver     `json:"waivers_used"`
	MissingEvidence []string     `json:"missing_evidence"`
	Timestamp       string       `json:"timestamp"`
	PolicyVersion   string       `json:"policy_version"`
}

// Failed reports whether the CI step must fail
func (d Decision) Failed() bool {
	return d.Status == StatusFailed
}

// Canonical JCS bytes, the form that is hashed and signed
func (d Decision) Canonical() ([]byte, error) {
	return canonical.Marshal(d)
}

// Digest sha256 of the canonical form
func (d Decision) Digest() (string, error) {
	return canonical.Digest(d)
}
