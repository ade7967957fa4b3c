package rules

import "github.com/govgate/govgate/internal/models"

// TestsEvaluator test suite health
type TestsEvaluator struct{}

func (TestsEvaluator) Family() models.Family { return models.FamilyTests }

func (TestsEvaluator) Validate(string, models.RuleConfig, models.Policy) error { return nil }

func (TestsEvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	t := ev.Tests
	if t == nil {
		if cfg.RequiresEvidence {
			return missing(id, cfg, "tests")
		}
		return absent(id, cfg, "tests")
	}

	if t.Status != "green" {
		return fail(id, cfg, "test status is %q, want green (%d failed)", t.Status, t.Failed)
	}
	if t.Failed > 0 {
		return fail(id, cfg, "%d test(s) failed", t.Failed)
	}
	return pass(id, cfg, "tests green: %d passed, %d skipped", t.Passed, t.Skipped)
}
