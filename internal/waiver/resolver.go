// Package waiver applies time-bound, approved exceptions to rule results.
// A waiver never changes a result, it only marks a failure as waived.
package waiver

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/govgate/govgate/internal/models"
)

// Diagnostic codes
const (
	CodeMissingRule     = "missing_rule"
	CodeMissingScope    = "missing_scope"
	CodeWildcardScope   = "wildcard_scope"
	CodeScopeMismatch   = "scope_mismatch"
	CodeMissingTTL      = "missing_ttl"
	CodeInvalidTTL      = "invalid_ttl"
	CodeExpired         = "expired"
	CodeMissingApprover = "missing_approver"
	CodeInvalidEvidence = "invalid_evidence"
	CodeUnknownRule     = "unknown_rule"
)

// Diagnostic why a waiver was not applied. Index is the waiver's position
// in the input.
type Diagnostic struct {
	Index  int    `json:"index"`
	Rule   string `json:"rule"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("waiver #%d (%s): %s: %s", d.Index, d.Rule, d.Code, d.Detail)
}

// Options for matching
type Options struct {
	// Repository also accepted as an exact scope
	Repository string
}

const dateLayout = "2006-01-02"

// ParseTTL accepts RFC 3339 or a plain date, which means 00:00 UTC that day
func ParseTTL(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("ttl %q is not an RFC 3339 timestamp or YYYY-MM-DD date", s)
}

// Check validates a waiver on its own, without looking at any result
func Check(index int, w models.Waiver, now time.Time) *Diagnostic {
	diag := func(code, format string, args ...interface{}) *Diagnostic {
		return &Diagnostic{Index: index, Rule: w.Rule, Code: code, Detail: fmt.Sprintf(format, args...)}
	}

	if strings.TrimSpace(w.Rule) == "" {
		return diag(CodeMissingRule, "rule is empty")
	}
	scope := strings.TrimSpace(w.Scope)
	if scope == "" {
		return diag(CodeMissingScope, "scope is empty")
	}
	if strings.ContainsAny(scope, "*?[") {
		return diag(CodeWildcardScope, "scope %q must name one rule or repository, not a pattern", w.Scope)
	}
	if strings.TrimSpace(w.TTL) == "" {
		return diag(CodeMissingTTL, "ttl is empty")
	}
	expires, err := ParseTTL(w.TTL)
	if err != nil {
		return diag(CodeInvalidTTL, "%v", err)
	}
	if !expires.After(now) {
		return diag(CodeExpired, "expired at %s", expires.UTC().Format(time.RFC3339))
	}
	if strings.TrimSpace(w.Approver) == "" {
		return diag(CodeMissingApprover, "approver is empty")
	}
	if w.Evidence != "" {
		u, err := url.Parse(w.Evidence)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return diag(CodeInvalidEvidence, "evidence %q is not an absolute URL", w.Evidence)
		}
	}
	return nil
}

// Apply marks failed results covered by an active waiver as waived. It
// returns the new results, the waivers that waived something (in input
// order) and a diagnostic for every waiver that was rejected.
func Apply(results []models.RuleResult, waivers []models.Waiver, now time.Time, opts Options) ([]models.RuleResult, []models.Waiver, []Diagnostic) {
	out := make([]models.RuleResult, len(results))
	copy(out, results)

	index := make(map[string][]int, len(out))
	for i, r := range out {
		index[r.ID] = append(index[r.ID], i)
	}

	var (
		used  []models.Waiver
		diags []Diagnostic
	)
	for i, w := range waivers {
		if d := Check(i, w, now); d != nil {
			diags = append(diags, *d)
			continue
		}
		targets, ok := index[w.Rule]
		if !ok {
			diags = append(diags, Diagnostic{Index: i, Rule: w.Rule, Code: CodeUnknownRule, Detail: "no rule with this id in the policy"})
			continue
		}
		if !scopeMatches(w, opts) {
			diags = append(diags, Diagnostic{
				Index:  i,
				Rule:   w.Rule,
				Code:   CodeScopeMismatch,
				Detail: fmt.Sprintf("scope %q matches neither the rule id nor the repository", w.Scope),
			})
			continue
		}

		applied := false
		for _, idx := range targets {
			if out[idx].Result == models.OutcomeFail {
				out[idx].Waived = true
				applied = true
			}
		}
		if applied && !containsWaiver(used, w) {
			used = append(used, w)
		}
	}
	return out, used, diags
}

func scopeMatches(w models.Waiver, opts Options) bool {
	scope := strings.TrimSpace(w.Scope)
	if scope == w.Rule {
		return true
	}
	return opts.Repository != "" && scope == opts.Repository
}

func containsWaiver(list []models.Waiver, w models.Waiver) bool {
	for _, x := range list {
		if x == w {
			return true
		}
	}
	return false
}
