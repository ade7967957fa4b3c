package rules

import "github.com/govgate/govgate/internal/models"

// SupplyChainEvaluator artifacts must be signed for release targets
type SupplyChainEvaluator struct{}

func (SupplyChainEvaluator) Family() models.Family { return models.FamilySupplyChain }

func (SupplyChainEvaluator) Validate(_ string, cfg models.RuleConfig, _ models.Policy) error {
	return validateTargets(cfg)
}

func (SupplyChainEvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	if !boolOr(cfg.RequireSigned, true) {
		return pass(id, cfg, "artifact signing not required")
	}

	enforce, why := enforced(cfg, ev)
	if ev.Integrity == nil || ev.Integrity.SignedArtifacts == nil {
		if enforce || cfg.RequiresEvidence {
			return missing(id, cfg, "integrity.signed_artifacts")
		}
		return pass(id, cfg, "signing not enforced: %s", why)
	}
	if !enforce {
		return pass(id, cfg, "signing not enforced: %s", why)
	}
	if !*ev.Integrity.SignedArtifacts {
		return fail(id, cfg, "artifacts are not signed (%s)", why)
	}
	return pass(id, cfg, "artifacts are signed (%s)", why)
}
