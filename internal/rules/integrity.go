package rules

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/govgate/govgate/internal/models"
)

// IntegrityEvaluator SBOM presence, digest-pinned images and registry allow-list
type IntegrityEvaluator struct{}

func (IntegrityEvaluator) Family() models.Family { return models.FamilyIntegrity }

func (IntegrityEvaluator) Validate(_ string, cfg models.RuleConfig, _ models.Policy) error {
	for _, r := range cfg.AllowedRegistries {
		if _, err := name.NewRegistry(r); err != nil {
			return fmt.Errorf("allowed_registries: %w", err)
		}
	}
	return validateTargets(cfg)
}

func (IntegrityEvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	enforce, why := enforced(cfg, ev)
	integ := ev.Integrity
	if integ == nil {
		if enforce || cfg.RequiresEvidence {
			return missing(id, cfg, "integrity")
		}
		return pass(id, cfg, "integrity not enforced: %s", why)
	}
	if !enforce {
		return pass(id, cfg, "integrity not enforced: %s", why)
	}

	var problems []string
	if boolOr(cfg.RequireSBOM, true) {
		if integ.SBOMPresent == nil {
			return missing(id, cfg, "integrity.sbom_present")
		}
		if !*integ.SBOMPresent {
			problems = append(problems, "no SBOM present")
		}
	}
	if cfg.RequirePinnedImages || len(cfg.AllowedRegistries) > 0 {
		problems = append(problems, checkImages(integ.Images, cfg.RequirePinnedImages, cfg.AllowedRegistries)...)
	}

	if len(problems) > 0 {
		return fail(id, cfg, "%s (%s)", strings.Join(problems, "; "), why)
	}
	return pass(id, cfg, "integrity checks passed for %d image(s) (%s)", len(integ.Images), why)
}

func checkImages(images []string, pinned bool, allowed []string) []string {
	registries := map[string]bool{}
	for _, a := range allowed {
		if r, err := name.NewRegistry(a); err == nil {
			registries[r.RegistryStr()] = true
		}
	}

	var problems []string
	for _, img := range images {
		ref, err := name.ParseReference(img)
		if err != nil {
			problems = append(problems, fmt.Sprintf("image %q is not a valid reference", img))
			continue
		}
		if _, ok := ref.(name.Digest); pinned && !ok {
			problems = append(problems, fmt.Sprintf("image %s is not pinned by digest", img))
		}
		if len(registries) > 0 && !registries[ref.Context().RegistryStr()] {
			problems = append(problems, fmt.Sprintf("image %s comes from registry %s which is not allowed", img, ref.Context().RegistryStr()))
		}
	}
	return problems
}
