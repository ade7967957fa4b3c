package rules

import (
	"fmt"

	"github.com/govgate/govgate/internal/models"
)

func pass(id string, cfg models.RuleConfig, format string, args ...any) models.RuleResult {
	return newResult(id, cfg, models.OutcomePass, false, fmt.Sprintf(format, args...))
}

func warn(id string, cfg models.RuleConfig, format string, args ...any) models.RuleResult {
	return newResult(id, cfg, models.OutcomeWarn, false, fmt.Sprintf(format, args...))
}

func fail(id string, cfg models.RuleConfig, format string, args ...any) models.RuleResult {
	return newResult(id, cfg, models.OutcomeFail, false, fmt.Sprintf(format, args...))
}

// missing evidence: a required domain is absent, the rule fails
func missing(id string, cfg models.RuleConfig, domain string) models.RuleResult {
	return newResult(id, cfg, models.OutcomeFail, true, fmt.Sprintf("required %s evidence is missing", domain))
}

// absent evidence the rule does not require
func absent(id string, cfg models.RuleConfig, domain string) models.RuleResult {
	return newResult(id, cfg, models.OutcomeMissingEvidence, false, fmt.Sprintf("no %s evidence provided", domain))
}

func newResult(id string, cfg models.RuleConfig, outcome models.Outcome, missingEvidence bool, msg string) models.RuleResult {
	return models.RuleResult{
		ID:              id,
		Severity:        cfg.Severity,
		Result:          outcome,
		Message:         msg,
		MissingEvidence: missingEvidence,
	}
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
