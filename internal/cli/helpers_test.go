package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const orgPolicy = `
policy_version: "2.0.0"
mode: enforce
coverage_min: 80
rules:
  coverage.line:
    severity: block
    requires_evidence: true
    threshold: 80
  security.sca:
    severity: block
    max_severity: no-critical
`

const repoPolicy = `
policy_version: "2.1.0"
coverage_min: 85
rules:
  tests.unit:
    severity: warn
`

const goodEvidence = `{
  "coverage": {"line": 91.5},
  "tests": {"status": "green", "passed": 120, "failed": 0},
  "security": {"sca": {"tool": "grype", "counts": {"low": 2}}},
  "meta": {"repository": "acme/payments", "branch": "feature/x", "commit": "abc123"}
}`

const failingEvidence = `{
  "coverage": {"line": 72.0},
  "tests": {"status": "green", "passed": 10, "failed": 0},
  "security": {"sca": {"counts": {"critical": 1}}},
  "meta": {"repository": "acme/payments"}
}`

const scaWaiver = `
waivers:
  - rule: security.sca
    scope: acme/payments
    reason: upstream fix pending
    ttl: 2026-04-01
    approver: appsec-lead
    evidence: https://tracker.example.com/SEC-9
  - rule: coverage.line
    scope: "*"
    ttl: 2026-04-01
    approver: someone
`
