package rules

import (
	"fmt"
	"strings"

	"github.com/govgate/govgate/internal/models"
)

const (
	scannerSAST = "sast"
	scannerSCA  = "sca"
)

// SecurityEvaluator caps the highest finding severity of a scan
type SecurityEvaluator struct{}

func (SecurityEvaluator) Family() models.Family { return models.FamilySecurity }

func (SecurityEvaluator) Validate(id string, cfg models.RuleConfig, _ models.Policy) error {
	if s := scannerOf(id, cfg); s != scannerSAST && s != scannerSCA {
		return fmt.Errorf("cannot tell scanner from %q (set scanner: sast or sca)", id)
	}
	if cfg.MaxSeverity == "" {
		return fmt.Errorf("max_severity is required")
	}
	if _, err := models.ParseMaxSeverity(cfg.MaxSeverity); err != nil {
		return err
	}
	if cfg.WarnSeverity != "" {
		if _, err := models.ParseSecurityLevel(cfg.WarnSeverity); err != nil {
			return fmt.Errorf("warn_severity: %w", err)
		}
	}
	return nil
}

func (SecurityEvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	scanner := scannerOf(id, cfg)
	domain := "security." + scanner

	var report *models.FindingsReport
	if ev.Security != nil {
		if scanner == scannerSAST {
			report = ev.Security.SAST
		} else {
			report = ev.Security.SCA
		}
	}
	if report == nil {
		if cfg.RequiresEvidence {
			return missing(id, cfg, domain)
		}
		return absent(id, cfg, domain)
	}

	// Validate already rejected unparsable values
	maxAllowed, _ := models.ParseMaxSeverity(cfg.MaxSeverity)

	highest, found := report.Counts.Highest()
	if !found {
		return pass(id, cfg, "%s reported no findings", domain)
	}

	summary := countSummary(report.Counts)
	if highest > maxAllowed {
		return fail(id, cfg, "%s highest severity %s exceeds allowed maximum %s (%s)", domain, highest, maxAllowed, summary)
	}
	if cfg.WarnSeverity != "" {
		warnAt, _ := models.ParseSecurityLevel(cfg.WarnSeverity)
		if highest >= warnAt {
			return warn(id, cfg, "%s highest severity %s is within %s but at or above warn level %s (%s)", domain, highest, maxAllowed, warnAt, summary)
		}
	}
	return pass(id, cfg, "%s highest severity %s is within allowed maximum %s", domain, highest, maxAllowed)
}

// scannerOf explicit scanner param, else the second id segment
func scannerOf(id string, cfg models.RuleConfig) string {
	if cfg.Scanner != "" {
		return strings.ToLower(cfg.Scanner)
	}
	parts := strings.Split(id, ".")
	if len(parts) < 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

func countSummary(c models.SeverityCounts) string {
	counts := []int{c.None, c.Low, c.Medium, c.High, c.Critical}
	var parts []string
	for i := len(counts) - 1; i >= 0; i-- {
		if counts[i] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", models.SecurityLevel(i), counts[i]))
		}
	}
	return strings.Join(parts, " ")
}
