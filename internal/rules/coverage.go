package rules

import (
	"fmt"
	"math"

	"github.com/govgate/govgate/internal/models"
)

const (
	metricLine   = "line"
	metricBranch = "branch"
)

// CoverageEvaluator minimum coverage percentage
type CoverageEvaluator struct{}

func (CoverageEvaluator) Family() models.Family { return models.FamilyCoverage }

func (CoverageEvaluator) Validate(_ string, cfg models.RuleConfig, p models.Policy) error {
	switch cfg.Metric {
	case "", metricLine, metricBranch:
	default:
		return fmt.Errorf("metric %q is not line or branch", cfg.Metric)
	}
	if cfg.Threshold == nil && p.CoverageMin == nil {
		return fmt.Errorf("threshold is required (or set coverage_min on the policy)")
	}
	for _, v := range []*float64{cfg.Threshold, p.CoverageMin} {
		if v != nil && (*v < 0 || *v > 100 || math.IsNaN(*v)) {
			return fmt.Errorf("threshold %v is outside 0..100", *v)
		}
	}
	return nil
}

func (CoverageEvaluator) Evaluate(id string, cfg models.RuleConfig, p models.Policy, ev models.Evidence) models.RuleResult {
	metric := cfg.Metric
	if metric == "" {
		metric = metricLine
	}
	required := requiredCoverage(cfg, p)

	var actual *float64
	if ev.Coverage != nil {
		if metric == metricBranch {
			actual = ev.Coverage.Branch
		} else {
			actual = ev.Coverage.Line
		}
	}
	if actual == nil {
		if cfg.RequiresEvidence {
			return missing(id, cfg, "coverage."+metric)
		}
		return absent(id, cfg, "coverage."+metric)
	}

	if *actual >= required {
		return pass(id, cfg, "%s coverage %.1f%% meets required %.1f%%", metric, *actual, required)
	}
	return fail(id, cfg, "%s coverage %.1f%% is below required %.1f%%", metric, *actual, required)
}

// requiredCoverage rule threshold, never below the policy-wide coverage_min
func requiredCoverage(cfg models.RuleConfig, p models.Policy) float64 {
	var required float64
	if cfg.Threshold != nil {
		required = *cfg.Threshold
	}
	if p.CoverageMin != nil && *p.CoverageMin > required {
		required = *p.CoverageMin
	}
	return required
}
