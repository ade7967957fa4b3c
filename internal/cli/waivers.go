package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/observability/logging"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/govgate/govgate/internal/rules"
	"github.com/govgate/govgate/internal/waiver"
	"github.com/spf13/cobra"
)

var waiversCmd = &cobra.Command{
	Use:   "waivers",
	Short: "Inspect waiver files",
}

var waiversCheckCmd = &cobra.Command{
	Use:   "check --waivers <waivers.yaml>",
	Short: "Report which waivers would be accepted",
	Long: `Validate every waiver as of --now: approver, ttl, specific scope, evidence
URL. With --policy, also check that each waiver names a rule of the effective
policy and that its scope matches the rule or --repository.

Exits 1 when any waiver would be rejected.`,
	Args: cobra.NoArgs,
	RunE: runWaiversCheck,
}

var (
	waiversFileFlag   string
	waiversNowFlag    string
	waiversRepoFlag   string
	waiversFormatFlag string
	waiversPolicySrc  policySources
)

func init() {
	f := waiversCheckCmd.Flags()
	f.StringVarP(&waiversFileFlag, "waivers", "w", "", "Waivers file (YAML or JSON)")
	f.StringVar(&waiversNowFlag, "now", "", "Check time, RFC 3339 (default: current time)")
	f.StringVar(&waiversRepoFlag, "repository", "", "Repository accepted as a waiver scope")
	f.StringVar(&waiversFormatFlag, "format", FormatText, "Output format: text or json")
	f.StringVarP(&waiversPolicySrc.PolicyPath, "policy", "p", "", "Repository policy, to check rule ids")
	f.StringVar(&waiversPolicySrc.BasePath, "base", "", "Organization baseline policy file")
	f.StringVar(&waiversPolicySrc.Preset, "preset", "", "Built-in organization baseline")
	waiversCmd.AddCommand(waiversCheckCmd)
}

// GetWaiversCmd export
func GetWaiversCmd() *cobra.Command {
	return waiversCmd
}

// WaiverStatus one line of waivers check
type WaiverStatus struct {
	Index      int                `json:"index"`
	Waiver     models.Waiver      `json:"waiver"`
	Accepted   bool               `json:"accepted"`
	Diagnostic *waiver.Diagnostic `json:"diagnostic,omitempty"`
}

func runWaiversCheck(cmd *cobra.Command, args []string) (err error) {
	sess := receipt.Start(cmd.Context(), "govgate waivers check", os.Args[1:])
	defer func() {
		_ = sess.Finish(err, receipt.WithInput("waivers", waiversFileFlag), receipt.WithInput("policy", waiversPolicySrc.PolicyPath))
	}()

	if waiversFileFlag == "" {
		return usageError(fmt.Errorf("--waivers is required"))
	}
	if err := validateFormat(waiversFormatFlag); err != nil {
		return err
	}
	now, err := parseNow(waiversNowFlag)
	if err != nil {
		return err
	}
	waivers, err := waiver.LoadFile(waiversFileFlag)
	if err != nil {
		return usageError(err)
	}

	var p *models.Policy
	if waiversPolicySrc.PolicyPath != "" {
		set, err := mergePolicies(cmd.Context(), waiversPolicySrc)
		if err != nil {
			return err
		}
		p = &set.Effective.Policy
	}

	statuses := checkWaivers(waivers, p, now, waiversRepoFlag)
	rejected := 0
	for _, s := range statuses {
		if !s.Accepted {
			rejected++
			logging.From(cmd.Context()).Warn("waiver", s.Diagnostic.String())
		}
	}

	out := cmd.OutOrStdout()
	if waiversFormatFlag == FormatJSON {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	} else {
		for _, s := range statuses {
			if s.Accepted {
				fmt.Fprintf(out, "%s✓%s #%d %s (scope %s, until %s, approved by %s)\n",
					colorGreen, colorReset, s.Index, s.Waiver.Rule, s.Waiver.Scope, s.Waiver.TTL, s.Waiver.Approver)
			} else {
				fmt.Fprintf(out, "%s✗%s #%d %s: %s: %s\n",
					colorRed, colorReset, s.Index, s.Waiver.Rule, s.Diagnostic.Code, s.Diagnostic.Detail)
			}
		}
		fmt.Fprintf(out, "%d waiver(s), %d rejected\n", len(statuses), rejected)
	}

	if rejected > 0 {
		return gateFailed(fmt.Errorf("%d waiver(s) rejected", rejected))
	}
	return nil
}

// checkWaivers runs the resolver against a failing result for every rule in
// p, so rule and scope matching are checked too.
func checkWaivers(waivers []models.Waiver, p *models.Policy, now time.Time, repository string) []WaiverStatus {
	statuses := make([]WaiverStatus, len(waivers))
	for i, w := range waivers {
		statuses[i] = WaiverStatus{Index: i, Waiver: w, Accepted: true}
	}

	var diags []waiver.Diagnostic
	if p == nil {
		for i, w := range waivers {
			if d := waiver.Check(i, w, now); d != nil {
				diags = append(diags, *d)
			}
		}
	} else {
		ids := rules.SortedRuleIDs(*p)
		results := make([]models.RuleResult, len(ids))
		for i, id := range ids {
			results[i] = models.RuleResult{ID: id, Severity: p.Rules[id].Severity, Result: models.OutcomeFail}
		}
		_, _, diags = waiver.Apply(results, waivers, now, waiver.Options{Repository: repository})
	}

	for _, d := range diags {
		statuses[d.Index].Accepted = false
		statuses[d.Index].Diagnostic = &d
	}
	return statuses
}
