package rules

import (
	"fmt"

	"github.com/govgate/govgate/internal/models"
)

var (
	defaultReleaseBranches = []string{"main", "release/*"}
	defaultTargetEnvs      = []string{"prod"}
)

// enforced reports whether supply-chain style checks apply to this change.
// Without change metadata the check is enforced.
func enforced(cfg models.RuleConfig, ev models.Evidence) (bool, string) {
	if ev.Meta == nil {
		return true, "no change metadata"
	}
	branches := cfg.ReleaseBranches
	if len(branches) == 0 {
		branches = defaultReleaseBranches
	}
	envs := cfg.TargetEnvs
	if len(envs) == 0 {
		envs = defaultTargetEnvs
	}

	if b := ev.Meta.Branch; b != "" {
		if p, ok := matchAny(b, branches); ok {
			return true, fmt.Sprintf("branch %s matches %s", b, p)
		}
	}
	if env := ev.Meta.TargetEnv; env != "" {
		for _, e := range envs {
			if e == env {
				return true, "target env " + env
			}
		}
	}
	return false, fmt.Sprintf("branch %q and target env %q are not release targets", ev.Meta.Branch, ev.Meta.TargetEnv)
}

func validateTargets(cfg models.RuleConfig) error {
	for _, b := range cfg.ReleaseBranches {
		if !validPattern(b) {
			return fmt.Errorf("release_branches: invalid pattern %q", b)
		}
	}
	for _, e := range cfg.TargetEnvs {
		if e == "" {
			return fmt.Errorf("target_envs: empty environment name")
		}
	}
	return nil
}
