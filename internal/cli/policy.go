package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/observability/receipt"
	"github.com/govgate/govgate/internal/policy"
	"github.com/govgate/govgate/internal/rules"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// policyCmd group
var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Merge, validate and explain policies",
}

var policyMergeCmd = &cobra.Command{
	Use:   "merge --policy <repo.yaml> [--base org.yaml | --preset name]",
	Short: "Print the effective policy",
	Long: `Merge the baseline with the repository policy and print the effective
policy. A repository that weakens a non-relaxable field is rejected.

Example:
  govgate policy merge --policy .govgate.yaml --preset strict --format yaml`,
	Args: cobra.NoArgs,
	RunE: runPolicyMerge,
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate --policy <repo.yaml>",
	Short: "Check the effective policy without evaluating",
	Long: `Merge and validate: every rule id must belong to a known family and carry
usable parameters. All problems are reported at once.`,
	Args: cobra.NoArgs,
	RunE: runPolicyValidate,
}

var policyExplainCmd = &cobra.Command{
	Use:   "explain --policy <repo.yaml>",
	Short: "Show what the repository policy changes relative to the baseline",
	Args:  cobra.NoArgs,
	RunE:  runPolicyExplain,
}

var (
	policySrc        policySources
	policyFormatFlag string
)

func init() {
	for _, c := range []*cobra.Command{policyMergeCmd, policyValidateCmd, policyExplainCmd} {
		f := c.Flags()
		f.StringVarP(&policySrc.PolicyPath, "policy", "p", "", "Repository policy (YAML or JSON)")
		f.StringVar(&policySrc.BasePath, "base", "", "Organization baseline policy file")
		f.StringVar(&policySrc.Preset, "preset", "", "Built-in organization baseline: baseline or strict")
		f.StringVar(&policySrc.FloorPath, "floor", "", "Org-mandatory minimums enforced even with extends: none")
	}
	policyMergeCmd.Flags().StringVar(&policyFormatFlag, "format", FormatJSON, "Output format: json or yaml")
	policyExplainCmd.Flags().StringVar(&policyFormatFlag, "format", FormatText, "Output format: text or json")

	policyCmd.AddCommand(policyMergeCmd)
	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyExplainCmd)
}

// GetPolicyCmd export
func GetPolicyCmd() *cobra.Command {
	return policyCmd
}

func policyReceipt(cmd *cobra.Command, name string) func(err error) {
	sess := receipt.Start(cmd.Context(), name, os.Args[1:])
	return func(err error) {
		_ = sess.Finish(err,
			receipt.WithInput("policy", policySrc.PolicyPath),
			receipt.WithInput("base", policySrc.BasePath),
		)
	}
}

func runPolicyMerge(cmd *cobra.Command, args []string) (err error) {
	done := policyReceipt(cmd, "govgate policy merge")
	defer func() { done(err) }()

	set, err := mergePolicies(cmd.Context(), policySrc)
	if err != nil {
		return err
	}

	var out []byte
	switch policyFormatFlag {
	case FormatJSON:
		out, err = json.MarshalIndent(set.Effective.Document, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(set.Effective.Document)
	default:
		return usageError(fmt.Errorf("invalid format: %s (use json or yaml)", policyFormatFlag))
	}
	if err != nil {
		return fmt.Errorf("failed to render policy: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runPolicyValidate(cmd *cobra.Command, args []string) (err error) {
	done := policyReceipt(cmd, "govgate policy validate")
	defer func() { done(err) }()

	set, err := mergePolicies(cmd.Context(), policySrc)
	if err != nil {
		return err
	}
	reg, err := rules.DefaultRegistry()
	if err != nil {
		return err
	}
	if err := reg.Validate(set.Effective.Policy); err != nil {
		return err
	}

	p := set.Effective.Policy
	fmt.Fprintf(cmd.OutOrStdout(), "%s✓ policy %s is valid%s (%d rules, mode %s)\n",
		colorGreen, p.PolicyVersion, colorReset, len(p.Rules), modeOrDefault(p.Mode))
	return nil
}

// ExplainOutput JSON form of policy explain
type ExplainOutput struct {
	SchemaVersion string                       `json:"schema_version"`
	Base          string                       `json:"base"`
	PolicyVersion string                       `json:"policy_version"`
	Changes       []policy.Change              `json:"changes"`
	Provenance    map[string]models.Provenance `json:"provenance"`
}

func runPolicyExplain(cmd *cobra.Command, args []string) (err error) {
	done := policyReceipt(cmd, "govgate policy explain")
	defer func() { done(err) }()

	if err := validateFormat(policyFormatFlag); err != nil {
		return err
	}
	set, err := mergePolicies(cmd.Context(), policySrc)
	if err != nil {
		return err
	}
	changes, err := policy.Explain(set.Base, set.Effective)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if policyFormatFlag == FormatJSON {
		data, err := json.MarshalIndent(ExplainOutput{
			SchemaVersion: "1.0",
			Base:          set.BaseName,
			PolicyVersion: set.Effective.Policy.PolicyVersion,
			Changes:       changes,
			Provenance:    set.Effective.Provenance,
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprint(out, formatExplainText(set, changes))
	return nil
}

func formatExplainText(set *policySet, changes []policy.Change) string {
	base := set.BaseName
	if base == "" {
		base = "(none)"
	}
	s := fmt.Sprintf("Effective policy %s (base %s, mode %s)\n",
		set.Effective.Policy.PolicyVersion, base, modeOrDefault(set.Effective.Policy.Mode))

	ids := make([]string, 0, len(set.Effective.Policy.Rules))
	for id := range set.Effective.Policy.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s += "Rules:\n"
	for _, id := range ids {
		cfg := set.Effective.Policy.Rules[id]
		src := set.Effective.Provenance["rules."+id+".severity"]
		if src == "" {
			src = models.FromMerged
		}
		s += fmt.Sprintf("  %s [%s] from %s\n", id, cfg.Severity, src)
	}

	lines := policy.Describe(changes)
	if len(lines) == 0 {
		return s + "No changes relative to the baseline.\n"
	}
	s += "Changes:\n"
	for _, l := range lines {
		s += "  " + l + "\n"
	}
	return s
}

func modeOrDefault(m models.Mode) models.Mode {
	if m == "" {
		return models.ModeEnforce
	}
	return m
}
