package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/govgate/govgate/internal/audit"
	"github.com/govgate/govgate/internal/crypto"
	"github.com/govgate/govgate/internal/ledger"
	"github.com/govgate/govgate/internal/models"
	otelobs "github.com/govgate/govgate/internal/observability/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const fixedNow = "2026-03-01T00:00:00Z"

func baseOptions(t *testing.T, evidence string) evaluateOptions {
	t.Helper()
	dir := t.TempDir()
	return evaluateOptions{
		policySources: policySources{
			PolicyPath: writeFile(t, dir, "repo.yaml", repoPolicy),
			BasePath:   writeFile(t, dir, "org.yaml", orgPolicy),
		},
		EvidencePath: writeFile(t, dir, "inputs.json", evidence),
		Now:          fixedNow,
		Format:       FormatText,
	}
}

func TestEvaluate_Passing(t *testing.T) {
	res, err := evaluate(context.Background(), baseOptions(t, goodEvidence))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Decision.Status != models.StatusPassed {
		t.Errorf("status = %s, rules = %+v", res.Decision.Status, res.Decision.Rules)
	}
	if res.Decision.PolicyVersion != "2.1.0" {
		t.Errorf("policy_version = %s", res.Decision.PolicyVersion)
	}
	if res.Decision.Timestamp != fixedNow {
		t.Errorf("timestamp = %s", res.Decision.Timestamp)
	}
	if !strings.HasPrefix(res.Digest, "sha256:") {
		t.Errorf("digest = %s", res.Digest)
	}
	if res.Advisory() {
		t.Error("passing decision reported as advisory")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	opts := baseOptions(t, failingEvidence)
	first, err := evaluate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := evaluate(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Digest != second.Digest {
		t.Errorf("digests differ: %s vs %s", first.Digest, second.Digest)
	}
}

func TestEvaluate_WaiversAndFailure(t *testing.T) {
	opts := baseOptions(t, failingEvidence)
	opts.WaiversPath = writeFile(t, t.TempDir(), "waivers.yaml", scaWaiver)

	res, err := evaluate(context.Background(), opts)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Decision.Status != models.StatusFailed {
		t.Fatalf("status = %s", res.Decision.Status)
	}

	byID := map[string]models.RuleResult{}
	for _, r := range res.Decision.Rules {
		byID[r.ID] = r
	}
	if sca := byID["security.sca"]; !sca.Waived || sca.Result != models.OutcomeFail {
		t.Errorf("security.sca = %+v", sca)
	}
	if cov := byID["coverage.line"]; !cov.Blocking() {
		t.Errorf("coverage.line should block: %+v", cov)
	}
	if len(res.Decision.WaiversUsed) != 1 || res.Decision.WaiversUsed[0].Approver != "appsec-lead" {
		t.Errorf("waivers_used = %+v", res.Decision.WaiversUsed)
	}
	if len(res.Report.Diagnostics) != 1 || res.Report.Diagnostics[0].Code != "wildcard_scope" {
		t.Errorf("diagnostics = %+v", res.Report.Diagnostics)
	}

	text := FormatTextOutput(res.Decision, res.Report, textOptions{Mode: res.Mode})
	for _, want := range []string{"govgate: FAILED", "waived by appsec-lead until 2026-04-01", "Waivers: 1 used, 1 rejected"} {
		if !strings.Contains(text, want) {
			t.Errorf("text output missing %q:\n%s", want, text)
		}
	}
}

func TestEvaluate_Advisory(t *testing.T) {
	dir := t.TempDir()
	opts := evaluateOptions{
		policySources: policySources{
			PolicyPath: writeFile(t, dir, "repo.yaml", "policy_version: \"1.1.0\"\nextends: baseline\n"),
		},
		EvidencePath: writeFile(t, dir, "inputs.json", failingEvidence),
		Now:          fixedNow,
	}
	res, err := evaluate(context.Background(), opts)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if res.Mode != models.ModeAdvisory {
		t.Fatalf("mode = %s", res.Mode)
	}
	if !res.Decision.Failed() || !res.Advisory() {
		t.Errorf("expected failed advisory decision, got %s", res.Decision.Status)
	}
}

func TestEvaluate_MergeViolation(t *testing.T) {
	opts := baseOptions(t, goodEvidence)
	opts.PolicyPath = writeFile(t, t.TempDir(), "weak.yaml", "policy_version: \"2.1.0\"\nmode: advisory\n")

	_, err := evaluate(context.Background(), opts)
	if err == nil {
		t.Fatal("expected merge violation")
	}
	if ExitCode(err) != ExitConfig {
		t.Errorf("exit code = %d for %v", ExitCode(err), err)
	}
}

func TestEvaluate_Artifacts(t *testing.T) {
	work := t.TempDir()
	priv := filepath.Join(work, "private.key")
	pub := filepath.Join(work, "public.key")
	if err := crypto.GenerateKeys(priv, pub); err != nil {
		t.Fatal(err)
	}

	opts := baseOptions(t, goodEvidence)
	opts.OutDir = filepath.Join(work, "run")
	opts.LedgerPath = filepath.Join(work, "gate.db")
	opts.MetricsFile = filepath.Join(work, "govgate.prom")
	opts.SignKey = priv

	res, err := evaluate(context.Background(), opts)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	manifest, err := audit.VerifyRun(opts.OutDir)
	if err != nil {
		t.Fatalf("VerifyRun: %v", err)
	}
	if manifest.DecisionDigest != res.Digest {
		t.Errorf("manifest digest = %s, want %s", manifest.DecisionDigest, res.Digest)
	}

	decisionJSON, err := os.ReadFile(filepath.Join(opts.OutDir, audit.DecisionFile))
	if err != nil {
		t.Fatal(err)
	}
	sig, err := os.ReadFile(filepath.Join(opts.OutDir, audit.SignatureFile))
	if err != nil {
		t.Fatal(err)
	}
	ok, err := crypto.VerifyDecision(decisionJSON, sig, pub)
	if err != nil || !ok {
		t.Errorf("signature does not verify: ok=%v err=%v", ok, err)
	}

	if res.Ledger == nil || res.Ledger.Seq != 1 || res.Ledger.Digest != res.Digest {
		t.Errorf("ledger entry = %+v", res.Ledger)
	}
	store, err := ledger.Open(opts.LedgerPath)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := store.List(context.Background(), ledger.ListOptions{Repository: "acme/payments"})
	store.Close()
	if err != nil || len(entries) != 1 {
		t.Errorf("ledger list = %v, %v", entries, err)
	}

	prom, err := os.ReadFile(opts.MetricsFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(prom), `govgate_decision_status{policy_version="2.1.0",status="passed"} 1`) {
		t.Errorf("metrics textfile:\n%s", prom)
	}

	// same inputs, same time: the run directory already exists
	opts.LedgerPath = ""
	if _, err := evaluate(context.Background(), opts); !errors.Is(err, audit.ErrRunExists) {
		t.Errorf("second write: %v", err)
	}
}

func TestEvaluate_DuplicateLedgerEntry(t *testing.T) {
	opts := baseOptions(t, goodEvidence)
	opts.LedgerPath = filepath.Join(t.TempDir(), "gate.db")
	if _, err := evaluate(context.Background(), opts); err != nil {
		t.Fatal(err)
	}
	_, err := evaluate(context.Background(), opts)
	if !errors.Is(err, ledger.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if !strings.Contains(err.Error(), "--now") {
		t.Errorf("missing hint: %v", err)
	}
}

func TestEvaluate_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx := otelobs.WithHandle(context.Background(), otelobs.InitWithProvider(tp))

	if _, err := evaluate(ctx, baseOptions(t, goodEvidence)); err != nil {
		t.Fatal(err)
	}

	names := map[string]bool{}
	for _, s := range recorder.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"govgate.evaluate", "govgate.policy.merge"} {
		if !names[want] {
			t.Errorf("span %s not recorded, got %v", want, names)
		}
	}
}
