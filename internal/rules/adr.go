package rules

import (
	"fmt"
	"strings"

	"github.com/govgate/govgate/internal/models"
)

const adrAccepted = "Accepted"

// ADREvaluator requires an accepted decision record for the change.
// The rule applies when required is true, or when any changed file matches
// required_paths. With neither set the rule always applies.
type ADREvaluator struct{}

func (ADREvaluator) Family() models.Family { return models.FamilyADR }

func (ADREvaluator) Validate(_ string, cfg models.RuleConfig, _ models.Policy) error {
	for _, p := range cfg.RequiredPaths {
		if !validPattern(p) {
			return fmt.Errorf("required_paths: invalid pattern %q", p)
		}
	}
	return nil
}

func (ADREvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	required, why := adrRequired(cfg, ev)
	if !required {
		return pass(id, cfg, "no ADR required: %s", why)
	}

	adr := ev.ADR
	if adr == nil {
		if cfg.RequiresEvidence {
			return missing(id, cfg, "adr")
		}
		return fail(id, cfg, "ADR required (%s) but no ADR evidence provided", why)
	}
	if len(adr.Referenced) == 0 {
		return fail(id, cfg, "ADR required (%s) but the change references none", why)
	}

	var seen []string
	for _, ref := range adr.Referenced {
		rec, ok := adr.Records[ref]
		switch {
		case !ok:
			seen = append(seen, ref+": no record")
		case !rec.Valid:
			seen = append(seen, ref+": invalid record")
		case rec.Status != adrAccepted:
			seen = append(seen, fmt.Sprintf("%s: %s", ref, rec.Status))
		default:
			return pass(id, cfg, "%s is accepted", ref)
		}
	}
	return fail(id, cfg, "no accepted ADR referenced (%s)", strings.Join(seen, "; "))
}

func adrRequired(cfg models.RuleConfig, ev models.Evidence) (bool, string) {
	if boolOr(cfg.Required, false) {
		return true, "required by policy"
	}
	if len(cfg.RequiredPaths) == 0 {
		if cfg.Required != nil {
			return false, "not required by policy"
		}
		return true, "required by policy"
	}
	if ev.Meta != nil {
		for _, f := range ev.Meta.ChangedFiles {
			if p, ok := matchAny(f, cfg.RequiredPaths); ok {
				return true, fmt.Sprintf("%s matches %s", f, p)
			}
		}
	}
	return false, "no changed file matches required_paths"
}
