package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/observability"
)

func readReceipt(t *testing.T, path string) Receipt {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read receipt: %v", err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, data)
	}
	return r
}

func TestWriterOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "receipt.json")
	for _, id := range []string{"op-1", "op-2"} {
		w, err := NewWriter(path, ModeOverwrite)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := w.Write(Receipt{SchemaVersion: ReceiptSchemaVersion, OpID: id, Result: Result{Status: "success"}}); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if r := readReceipt(t, path); r.OpID != "op-2" {
		t.Errorf("op_id = %q, want the latest receipt", r.OpID)
	}
}

func TestWriterAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "receipts.jsonl")
	w, err := NewWriter(path, ModeAppend)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	for _, id := range []string{"op-1", "op-2", "op-3"} {
		if err := w.Write(Receipt{OpID: id}); err != nil {
			t.Fatal(err)
		}
	}
	_ = w.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var r Receipt
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Errorf("line %d: %v", i+1, err)
		}
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode(""); err != nil || m != ModeOverwrite {
		t.Errorf("ParseMode(\"\") = %q, %v", m, err)
	}
	if m, err := ParseMode("append"); err != nil || m != ModeAppend {
		t.Errorf("ParseMode(append) = %q, %v", m, err)
	}
	if _, err := ParseMode("rotate"); err == nil {
		t.Error("expected error")
	}
}

func TestSessionFinish_DecisionAndInputs(t *testing.T) {
	dir := t.TempDir()
	policyPath := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(policyPath, []byte("policy_version: \"1.0.0\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "receipt.json")
	w, err := NewWriter(out, ModeOverwrite)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	ctx := observability.WithOpID(context.Background())
	ctx = WithWriter(ctx, w)

	d := models.Decision{
		Status:          models.StatusFailed,
		Score:           30,
		PolicyVersion:   "1.0.0",
		MissingEvidence: []string{"coverage.min"},
		Rules: []models.RuleResult{
			{ID: "coverage.min", Severity: models.SeverityBlock, Result: models.OutcomeFail, MissingEvidence: true},
			{ID: "security.sca", Severity: models.SeverityBlock, Result: models.OutcomeFail, Waived: true},
		},
	}

	sess := Start(ctx, "govgate evaluate", []string{"--policy", policyPath, "--token", "ghp_abcdef"})
	if err := sess.Finish(nil, WithInput("policy", policyPath), WithInput("waivers", ""), WithDecision(d, "sha256:beef"), WithRunDir("runs/1")); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	r := readReceipt(t, out)
	if r.OpID != observability.OpID(ctx) || r.Result.Status != "success" {
		t.Errorf("receipt = %+v", r)
	}
	if !r.ArgsRedacted || r.Args[3] != redactedValue {
		t.Errorf("args not redacted: %v", r.Args)
	}
	if len(r.Inputs) != 1 || r.Inputs[0].Role != "policy" || len(r.Inputs[0].SHA256) != 64 {
		t.Errorf("inputs = %+v", r.Inputs)
	}
	if r.Decision == nil {
		t.Fatal("decision summary missing")
	}
	if r.Decision.Status != "failed" || r.Decision.Digest != "sha256:beef" {
		t.Errorf("decision = %+v", r.Decision)
	}
	if len(r.Decision.Blocking) != 1 || r.Decision.Blocking[0] != "coverage.min" {
		t.Errorf("blocking = %v", r.Decision.Blocking)
	}
	if len(r.Decision.Waived) != 1 || r.Decision.Waived[0] != "security.sca" {
		t.Errorf("waived = %v", r.Decision.Waived)
	}
	if r.RunDir != "runs/1" {
		t.Errorf("run_dir = %q", r.RunDir)
	}
}

func TestSessionFinish_ErrorTruncated(t *testing.T) {
	out := filepath.Join(t.TempDir(), "receipt.json")
	w, err := NewWriter(out, ModeOverwrite)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	ctx := WithWriter(context.Background(), w)

	long := strings.Repeat("x", MaxErrorLength*2)
	if err := Start(ctx, "govgate evaluate", nil).Finish(errors.New(long)); err != nil {
		t.Fatal(err)
	}
	r := readReceipt(t, out)
	if r.Result.Status != "fail" || len(r.Result.Error) != MaxErrorLength || !strings.HasSuffix(r.Result.Error, "...") {
		t.Errorf("error not truncated: status=%s len=%d", r.Result.Status, len(r.Result.Error))
	}
}

func TestSessionFinish_NoWriter(t *testing.T) {
	if err := Start(context.Background(), "govgate evaluate", nil).Finish(nil); err != nil {
		t.Errorf("Finish without writer: %v", err)
	}
}

func TestEnabled(t *testing.T) {
	ctx := context.Background()
	if Enabled(ctx) || Enabled(WithWriter(ctx, nil)) {
		t.Error("receipts enabled without a writer")
	}
	w, err := NewWriter(filepath.Join(t.TempDir(), "receipt.json"), ModeOverwrite)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if !Enabled(WithWriter(ctx, w)) {
		t.Error("receipts disabled with a writer")
	}
}
