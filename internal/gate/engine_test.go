package gate

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/policy"
)

var now = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func effective(t *testing.T, src string) *models.EffectivePolicy {
	t.Helper()
	doc, err := policy.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	eff, err := policy.Merge(nil, doc)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return eff
}

func evidence(t *testing.T, src string) models.Evidence {
	t.Helper()
	var ev models.Evidence
	if err := json.Unmarshal([]byte(src), &ev); err != nil {
		t.Fatalf("evidence: %v", err)
	}
	return ev
}

const coveragePolicy = `
policy_version: "1.4.0"
rules:
  coverage.min:
    severity: block
    requires_evidence: true
    threshold: 80
`

const optionalCoveragePolicy = `
policy_version: "1.4.0"
rules:
  coverage.min:
    severity: warn
    requires_evidence: false
`

const scaPolicy = `
policy_version: "1.4.0"
rules:
  security.sca:
    severity: block
    max_severity: no-critical
`

func activeWaiver() models.Waiver {
	return models.Waiver{
		Rule:     "security.sca",
		Scope:    "security.sca",
		Reason:   "upstream patch scheduled",
		TTL:      "2026-03-15",
		Approver: "appsec",
		Evidence: "https://tracker.example.com/SEC-7",
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name        string
		policy      string
		evidence    string
		waivers     []models.Waiver
		wantResult  models.Outcome
		wantWaived  bool
		wantMissing bool
		wantStatus  models.Status
	}{
		{
			name:       "coverage above threshold",
			policy:     coveragePolicy,
			evidence:   `{"coverage":{"line":86.3}}`,
			wantResult: models.OutcomePass,
			wantStatus: models.StatusPassed,
		},
		{
			name:       "coverage below threshold",
			policy:     coveragePolicy,
			evidence:   `{"coverage":{"line":72.0}}`,
			wantResult: models.OutcomeFail,
			wantStatus: models.StatusFailed,
		},
		{
			name:        "coverage evidence missing",
			policy:      coveragePolicy,
			evidence:    `{}`,
			wantResult:  models.OutcomeFail,
			wantMissing: true,
			wantStatus:  models.StatusFailed,
		},
		{
			name:       "optional coverage evidence absent",
			policy:     optionalCoveragePolicy,
			evidence:   `{}`,
			wantResult: models.OutcomeMissingEvidence,
			wantStatus: models.StatusPassedWithWarnings,
		},
		{
			name:       "critical sca finding",
			policy:     scaPolicy,
			evidence:   `{"security":{"sca":{"counts":{"critical":1}}}}`,
			wantResult: models.OutcomeFail,
			wantStatus: models.StatusFailed,
		},
		{
			name:       "critical sca finding waived",
			policy:     scaPolicy,
			evidence:   `{"security":{"sca":{"counts":{"critical":1}}}}`,
			waivers:    []models.Waiver{activeWaiver()},
			wantResult: models.OutcomeFail,
			wantWaived: true,
			wantStatus: models.StatusPassedWithWarnings,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, err := Evaluate(effective(t, tt.policy), evidence(t, tt.evidence), tt.waivers, now)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if len(d.Rules) != 1 {
				t.Fatalf("rules = %v", d.Rules)
			}
			r := d.Rules[0]
			if r.Result != tt.wantResult || r.Waived != tt.wantWaived || r.MissingEvidence != tt.wantMissing {
				t.Errorf("rule = %+v", r)
			}
			if d.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", d.Status, tt.wantStatus)
			}
			listed := tt.wantMissing || tt.wantResult == models.OutcomeMissingEvidence
			if listed && (len(d.MissingEvidence) != 1 || d.MissingEvidence[0] != r.ID) {
				t.Errorf("missing_evidence = %v", d.MissingEvidence)
			}
			if !listed && len(d.MissingEvidence) != 0 {
				t.Errorf("missing_evidence = %v, want empty", d.MissingEvidence)
			}
			if tt.wantWaived && len(d.WaiversUsed) != 1 {
				t.Errorf("waivers_used = %v", d.WaiversUsed)
			}
			if d.PolicyVersion != "1.4.0" {
				t.Errorf("policy_version = %q", d.PolicyVersion)
			}
			if d.Timestamp != "2026-03-01T09:30:00Z" {
				t.Errorf("timestamp = %q", d.Timestamp)
			}
		})
	}
}

func TestScenario_MergeViolationProducesNothing(t *testing.T) {
	base, _ := policy.Parse([]byte("coverage_min: 80"))
	over, _ := policy.Parse([]byte("coverage_min: 60"))
	eff, err := policy.Merge(base, over)
	var v *policy.MergeConstraintViolation
	if !errors.As(err, &v) {
		t.Fatalf("expected violation, got %v", err)
	}
	if eff != nil {
		t.Fatal("violation must not yield an effective policy")
	}
	if _, _, err := Evaluate(eff, models.Evidence{}, nil, now); err == nil {
		t.Fatal("Evaluate must refuse a nil policy")
	}
}

func TestExpiredWaiverNeverWaives(t *testing.T) {
	w := activeWaiver()
	w.TTL = "2026-02-01"
	d, report, err := Evaluate(effective(t, scaPolicy), evidence(t, `{"security":{"sca":{"counts":{"critical":2}}}}`), []models.Waiver{w}, now)
	if err != nil {
		t.Fatal(err)
	}
	if d.Rules[0].Waived || d.Status != models.StatusFailed {
		t.Errorf("expired waiver applied: %+v status %s", d.Rules[0], d.Status)
	}
	if len(report.Diagnostics) != 1 {
		t.Errorf("diagnostics = %v", report.Diagnostics)
	}
	if len(d.WaiversUsed) != 0 {
		t.Errorf("waivers_used = %v", d.WaiversUsed)
	}
}

func TestUnknownFamilyIsConfigurationError(t *testing.T) {
	eff := effective(t, "rules:\n  perf.p99:\n    severity: warn\n")
	_, _, err := Evaluate(eff, models.Evidence{}, nil, now)
	var cfgErr *policy.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %v", err)
	}
}

const mixedPolicy = `
policy_version: "2.0.0"
coverage_min: 70
rules:
  tests.unit:
    severity: block
    requires_evidence: true
  coverage.line:
    severity: warn
  security.sast:
    severity: warn
    max_severity: no-critical
    warn_severity: high
  security.sca:
    severity: block
    max_severity: no-critical
  adr.api:
    severity: info
    required_paths: ["api/**"]
  supplychain.signatures:
    severity: block
  integrity.sbom:
    severity: block
    require_pinned_images: true
  custom.small_change:
    severity: info
    expr: 'size(evidence.meta.changed_files) < 50'
`

const mixedEvidence = `{
  "tests": {"status": "green", "passed": 120, "failed": 0, "skipped": 2},
  "coverage": {"line": 74.2, "branch": 61.0},
  "security": {
    "sast": {"tool": "semgrep", "counts": {"high": 1, "low": 4}},
    "sca": {"tool": "grype", "counts": {"critical": 1}}
  },
  "adr": {"referenced": ["ADR-0012"], "records": {"ADR-0012": {"status": "Accepted", "valid": true}}},
  "integrity": {
    "signed_artifacts": true,
    "sbom_present": true,
    "images": ["ghcr.io/acme/api@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"]
  },
  "meta": {"repository": "acme/api", "branch": "main", "changed_files": ["api/handler.go", "README.md"]}
}`

func TestMixedPolicy(t *testing.T) {
	w := activeWaiver()
	w.Scope = "acme/api"
	d, report, err := Evaluate(effective(t, mixedPolicy), evidence(t, mixedEvidence), []models.Waiver{w}, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := map[string]models.Outcome{
		"adr.api":                models.OutcomePass,
		"coverage.line":          models.OutcomePass,
		"custom.small_change":    models.OutcomePass,
		"integrity.sbom":         models.OutcomePass,
		"security.sast":          models.OutcomeWarn,
		"security.sca":           models.OutcomeFail,
		"supplychain.signatures": models.OutcomePass,
		"tests.unit":             models.OutcomePass,
	}
	if len(d.Rules) != len(want) {
		t.Fatalf("rules = %d, want %d", len(d.Rules), len(want))
	}
	for i, r := range d.Rules {
		if i > 0 && d.Rules[i-1].ID >= r.ID {
			t.Errorf("rules not sorted: %s before %s", d.Rules[i-1].ID, r.ID)
		}
		if r.Result != want[r.ID] {
			t.Errorf("%s = %s (%s), want %s", r.ID, r.Result, r.Message, want[r.ID])
		}
	}

	if d.Status != models.StatusPassedWithWarnings {
		t.Errorf("status = %s", d.Status)
	}
	// block passes: tests, supplychain, integrity (+30); waived sca 0; warn passes: coverage (+5)
	if d.Score != 85 {
		t.Errorf("score = %d, want 85", d.Score)
	}
	if report.Evaluated != 8 || report.Waived != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	eff := effective(t, mixedPolicy)
	ev := evidence(t, mixedEvidence)
	waivers := []models.Waiver{activeWaiver()}

	first, _, err := Evaluate(eff, ev, waivers, now)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _, err := Evaluate(eff, ev, waivers, now)
		if err != nil {
			t.Fatal(err)
		}
		a, _ := first.Canonical()
		b, _ := again.Canonical()
		if !bytes.Equal(a, b) {
			t.Fatalf("run %d differs:\n%s\n%s", i, a, b)
		}
	}

	later, _, err := Evaluate(eff, ev, waivers, now.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if later.Timestamp == first.Timestamp {
		t.Error("timestamp should follow now")
	}
	later.Timestamp = first.Timestamp
	a, _ := first.Digest()
	b, _ := later.Digest()
	if a != b {
		t.Error("only the timestamp may differ when now differs")
	}
}

func TestDecisionJSONShape(t *testing.T) {
	d, _, err := Evaluate(effective(t, coveragePolicy), evidence(t, `{"coverage":{"line":90}}`), nil, now)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"status", "score", "rules", "waivers_used", "missing_evidence", "timestamp", "policy_version"} {
		if _, ok := generic[key]; !ok {
			t.Errorf("decision JSON lacks %q", key)
		}
	}
	if len(generic) != 7 {
		t.Errorf("decision JSON has extra keys: %v", generic)
	}
	if generic["waivers_used"] == nil || generic["missing_evidence"] == nil {
		t.Error("empty lists must encode as [] not null")
	}
	rule := generic["rules"].([]interface{})[0].(map[string]interface{})
	for _, key := range []string{"id", "severity", "result", "waived", "message", "missing_evidence"} {
		if _, ok := rule[key]; !ok {
			t.Errorf("rule JSON lacks %q", key)
		}
	}
}
