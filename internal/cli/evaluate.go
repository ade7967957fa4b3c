package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/govgate/govgate/internal/audit"
	"github.com/govgate/govgate/internal/crypto"
	"github.com/govgate/govgate/internal/gate"
	"github.com/govgate/govgate/internal/ledger"
	"github.com/govgate/govgate/internal/metrics"
	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/observability/logging"
	otelobs "github.com/govgate/govgate/internal/observability/otel"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/govgate/govgate/internal/waiver"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate --policy <repo.yaml> --evidence <inputs.json>",
	Short: "Evaluate evidence against the effective policy",
	Long: `Merge the organization baseline with the repository policy, evaluate every
rule against the evidence, apply waivers and print the decision.

Exit codes:
  0  passed or passed_with_warnings (or failed in advisory mode)
  1  failed
  2  configuration or merge error, no decision was made

Examples:
  govgate evaluate --policy .govgate.yaml --preset strict --evidence inputs.json

  # Reproducible decision with audit trail
  govgate evaluate --policy .govgate.yaml --base org.yaml --evidence inputs.json \
    --waivers waivers.yaml --now 2026-03-01T00:00:00Z --out-dir runs/42 \
    --ledger gate.db --sign-key private.key --format json`,
	Args: cobra.NoArgs,
	RunE: runEvaluate,
}

// evaluateOptions everything one evaluation needs
type evaluateOptions struct {
	policySources
	EvidencePath string
	WaiversPath  string
	Now          string
	Format       string
	OutDir       string
	LedgerPath   string
	MetricsFile  string
	SignKey      string
	NoColor      bool
}

var evalOpts evaluateOptions

func init() {
	f := evaluateCmd.Flags()
	f.StringVarP(&evalOpts.PolicyPath, "policy", "p", "", "Repository policy (YAML or JSON)")
	f.StringVar(&evalOpts.BasePath, "base", "", "Organization baseline policy file")
	f.StringVar(&evalOpts.Preset, "preset", "", "Built-in organization baseline: baseline or strict")
	f.StringVar(&evalOpts.FloorPath, "floor", "", "Org-mandatory minimums enforced even with extends: none")
	f.StringVarP(&evalOpts.EvidencePath, "evidence", "e", "", "Evidence bundle (JSON, - for stdin)")
	f.StringVarP(&evalOpts.WaiversPath, "waivers", "w", "", "Waivers file (YAML or JSON)")
	f.StringVar(&evalOpts.Now, "now", "", "Evaluation time, RFC 3339 (default: current time)")
	f.StringVar(&evalOpts.Format, "format", FormatText, "Output format: text or json")
	f.StringVar(&evalOpts.OutDir, "out-dir", "", "Write the immutable run directory here")
	f.StringVar(&evalOpts.LedgerPath, "ledger", "", "Append the decision to this SQLite ledger")
	f.StringVar(&evalOpts.MetricsFile, "metrics-file", "", "Write Prometheus textfile metrics here")
	f.StringVar(&evalOpts.SignKey, "sign-key", "", "Sign the decision with this ed25519 private key")
	f.BoolVar(&evalOpts.NoColor, "no-color", false, "Disable colored text output")
}

// GetEvaluateCmd export
func GetEvaluateCmd() *cobra.Command {
	return evaluateCmd
}

// evaluation result of one run, with what was produced alongside
type evaluation struct {
	Decision  models.Decision
	Report    gate.Report
	Digest    string
	Mode      models.Mode
	Policies  *policySet
	Signature []byte
	Ledger    *ledger.Entry
}

// Advisory a failed decision that must not fail the pipeline
func (e *evaluation) Advisory() bool {
	return e.Decision.Failed() && e.Mode == models.ModeAdvisory
}

func runEvaluate(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()
	opts := evalOpts
	sess := receipt.Start(ctx, "govgate evaluate", os.Args[1:])
	var receiptOpts []receipt.Option
	defer func() {
		receiptOpts = append(receiptOpts,
			receipt.WithInput("policy", opts.PolicyPath),
			receipt.WithInput("base", opts.BasePath),
			receipt.WithInput("evidence", opts.EvidencePath),
			receipt.WithInput("waivers", opts.WaiversPath),
		)
		_ = sess.Finish(err, receiptOpts...)
	}()

	if err := validateFormat(opts.Format); err != nil {
		return err
	}

	res, err := evaluate(ctx, opts)
	if err != nil {
		return err
	}
	receiptOpts = append(receiptOpts, receipt.WithDecision(res.Decision, res.Digest))
	if opts.OutDir != "" {
		receiptOpts = append(receiptOpts, receipt.WithRunDir(opts.OutDir))
	}

	out := cmd.OutOrStdout()
	if opts.Format == FormatJSON {
		data, err := FormatJSONOutput(res.Decision)
		if err != nil {
			return fmt.Errorf("failed to format JSON output: %w", err)
		}
		fmt.Fprintln(out, string(data))
	} else {
		fmt.Fprint(out, FormatTextOutput(res.Decision, res.Report, textOptions{
			Mode:     res.Mode,
			Color:    !opts.NoColor,
			Advisory: res.Advisory(),
		}))
	}

	if res.Decision.Failed() && !res.Advisory() {
		blocking := 0
		for _, r := range res.Decision.Rules {
			if r.Blocking() {
				blocking++
			}
		}
		return gateFailed(fmt.Errorf("gate failed: %d blocking rule(s)", blocking))
	}
	return nil
}

// evaluate the whole pipeline without printing
func evaluate(ctx context.Context, opts evaluateOptions) (res *evaluation, err error) {
	log := logging.From(ctx)
	start := time.Now()

	ctx, end := otelobs.Start(ctx, "govgate.evaluate",
		attribute.String(otelobs.AttrPrefix+"policy", opts.PolicyPath),
	)
	defer func() { end(err) }()

	log.Event(ctx, "evaluate.start", map[string]any{"policy": opts.PolicyPath, "evidence": opts.EvidencePath})
	defer func() {
		fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
		if res != nil {
			fields["status"] = string(res.Decision.Status)
			fields["score"] = res.Decision.Score
			fields["digest"] = res.Digest
		} else {
			fields["status"] = "error"
		}
		log.Event(ctx, "evaluate.complete", fields)
	}()

	now, err := parseNow(opts.Now)
	if err != nil {
		return nil, err
	}

	policies, err := mergePolicies(ctx, opts.policySources)
	if err != nil {
		return nil, err
	}
	ev, err := loadEvidence(opts.EvidencePath)
	if err != nil {
		return nil, err
	}
	waivers, err := waiver.LoadFile(opts.WaiversPath)
	if err != nil {
		return nil, usageError(err)
	}

	decision, report, err := gate.Evaluate(policies.Effective, ev, waivers, now)
	if err != nil {
		return nil, err
	}
	for _, d := range report.Diagnostics {
		log.Warn("waiver", d.String())
		log.Event(ctx, "waiver.rejected", map[string]any{"index": d.Index, "rule": d.Rule, "code": d.Code})
	}

	digest, err := decision.Digest()
	if err != nil {
		return nil, fmt.Errorf("failed to digest decision: %w", err)
	}
	otelobs.Annotate(ctx,
		attribute.String(otelobs.AttrPrefix+"status", string(decision.Status)),
		attribute.Int(otelobs.AttrPrefix+"score", decision.Score),
		attribute.String(otelobs.AttrPrefix+"digest", digest),
	)

	res = &evaluation{
		Decision: decision,
		Report:   report,
		Digest:   digest,
		Mode:     policies.Effective.Policy.Mode,
		Policies: policies,
	}

	if opts.SignKey != "" {
		if res.Signature, err = crypto.SignDecision(decision, opts.SignKey); err != nil {
			return nil, usageError(fmt.Errorf("failed to sign decision: %w", err))
		}
	}
	if opts.OutDir != "" {
		if _, err := audit.WriteRun(opts.OutDir, audit.Run{
			Decision:  decision,
			Policy:    policies.Effective.Document,
			Inputs:    ev,
			Waivers:   waivers,
			Signature: res.Signature,
		}); err != nil {
			return nil, usageError(err)
		}
		log.Info("audit", "run directory written", "dir", opts.OutDir)
	}
	if opts.LedgerPath != "" {
		entry, err := appendLedger(ctx, opts.LedgerPath, decision, ev, now)
		if err != nil {
			return nil, usageError(err)
		}
		res.Ledger = entry
		log.Info("ledger", "decision recorded", "seq", entry.Seq, "digest", entry.Digest)
	}
	if opts.MetricsFile != "" {
		g := metrics.NewGate()
		g.Observe(decision, len(report.Diagnostics))
		if err := g.WriteTextfile(opts.MetricsFile); err != nil {
			return nil, usageError(err)
		}
	}
	return res, nil
}

func mergePolicies(ctx context.Context, src policySources) (set *policySet, err error) {
	ctx, end := otelobs.Start(ctx, "govgate.policy.merge")
	defer func() { end(err) }()

	set, err = loadPolicies(src)
	if err != nil {
		return nil, err
	}
	otelobs.Annotate(ctx,
		attribute.String(otelobs.AttrPrefix+"base", set.BaseName),
		attribute.String(otelobs.AttrPrefix+"policy_version", set.Effective.Policy.PolicyVersion),
		attribute.Int(otelobs.AttrPrefix+"rules", len(set.Effective.Policy.Rules)),
	)
	logging.From(ctx).Debug("policy", "merged", "base", set.BaseName, "rules", len(set.Effective.Policy.Rules))
	return set, nil
}

func appendLedger(ctx context.Context, path string, d models.Decision, ev models.Evidence, now time.Time) (*ledger.Entry, error) {
	store, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var src ledger.Source
	if ev.Meta != nil {
		src = ledger.Source{Repository: ev.Meta.Repository, Commit: ev.Meta.Commit}
	}
	entry, err := store.Append(ctx, d, src, now)
	if errors.Is(err, ledger.ErrDuplicate) {
		return nil, fmt.Errorf("%w (re-running the same evaluation? pass a new --now)", err)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
