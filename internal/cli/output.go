package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/govgate/govgate/internal/gate"
	"github.com/govgate/govgate/internal/models"
)

const (
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorReset  = "\033[0m"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

func validateFormat(f string) error {
	if f != FormatText && f != FormatJSON {
		return usageError(fmt.Errorf("invalid format: %s (use text or json)", f))
	}
	return nil
}

// FormatJSONOutput the decision exactly as recorded
func FormatJSONOutput(d models.Decision) ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// textOptions context printed around the decision
type textOptions struct {
	Mode     models.Mode
	Color    bool
	Advisory bool // failure downgraded by advisory mode
}

// FormatTextOutput the plain pass/fail list CI logs show
func FormatTextOutput(d models.Decision, report gate.Report, opts textOptions) string {
	var sb strings.Builder
	paint := func(color, s string) string {
		if !opts.Color || color == "" {
			return s
		}
		return color + s + colorReset
	}

	header := strings.ToUpper(string(d.Status))
	statusColor := colorGreen
	switch d.Status {
	case models.StatusFailed:
		statusColor = colorRed
	case models.StatusPassedWithWarnings:
		statusColor = colorYellow
	}
	mode := opts.Mode
	if mode == "" {
		mode = models.ModeEnforce
	}
	sb.WriteString(fmt.Sprintf("govgate: %s (score %d, policy %s, mode %s)\n",
		paint(statusColor, header), d.Score, d.PolicyVersion, mode))

	waivedBy := map[string]models.Waiver{}
	for _, w := range d.WaiversUsed {
		if _, seen := waivedBy[w.Rule]; !seen {
			waivedBy[w.Rule] = w
		}
	}

	for _, r := range d.Rules {
		mark, color := ruleMark(r)
		line := fmt.Sprintf("  %s %s [%s] %s: %s", mark, r.ID, r.Severity, r.Result, r.Message)
		if r.Waived {
			w := waivedBy[r.ID]
			line += fmt.Sprintf(" (waived by %s until %s)", w.Approver, w.TTL)
		}
		sb.WriteString(paint(color, line) + "\n")
	}

	if len(d.MissingEvidence) > 0 {
		sb.WriteString(fmt.Sprintf("Missing evidence: %s\n", strings.Join(d.MissingEvidence, ", ")))
	}
	if len(d.WaiversUsed) > 0 || len(report.Diagnostics) > 0 {
		sb.WriteString(fmt.Sprintf("Waivers: %d used, %d rejected\n", len(d.WaiversUsed), len(report.Diagnostics)))
		for _, diag := range report.Diagnostics {
			sb.WriteString("  - " + diag.String() + "\n")
		}
	}
	if opts.Advisory {
		sb.WriteString(paint(colorYellow, "Advisory mode: failures are reported but do not fail the pipeline") + "\n")
	}
	return sb.String()
}

func ruleMark(r models.RuleResult) (string, string) {
	switch {
	case r.Result == models.OutcomePass:
		return "✓", colorGreen
	case r.Waived:
		return "~", colorYellow
	case r.Result == models.OutcomeFail && r.Severity == models.SeverityBlock:
		return "✗", colorRed
	case r.Result == models.OutcomeFail, r.Result == models.OutcomeWarn:
		return "!", colorYellow
	}
	return "-", ""
}
