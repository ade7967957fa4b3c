// Package rules evaluates one policy rule against CI evidence.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/policy"
)

// Evaluator one rule family. Evaluate is pure and total: every input
// yields exactly one RuleResult.
type Evaluator interface {
	Family() models.Family
	Validate(id string, cfg models.RuleConfig, p models.Policy) error
	Evaluate(id string, cfg models.RuleConfig, p models.Policy, ev models.Evidence) models.RuleResult
}

// Registry maps every family to its evaluator
type Registry struct {
	evaluators map[models.Family]Evaluator
}

// NewRegistry fails unless every family has exactly one evaluator
func NewRegistry(evaluators ...Evaluator) (*Registry, error) {
	r := &Registry{evaluators: make(map[models.Family]Evaluator, len(evaluators))}
	for _, e := range evaluators {
		if _, dup := r.evaluators[e.Family()]; dup {
			return nil, fmt.Errorf("duplicate evaluator for family %s", e.Family())
		}
		r.evaluators[e.Family()] = e
	}
	for _, f := range models.Families() {
		if _, ok := r.evaluators[f]; !ok {
			return nil, fmt.Errorf("no evaluator registered for family %s", f)
		}
	}
	return r, nil
}

// DefaultRegistry all built-in evaluators
func DefaultRegistry() (*Registry, error) {
	custom, err := NewCustomEvaluator()
	if err != nil {
		return nil, err
	}
	return NewRegistry(
		TestsEvaluator{},
		CoverageEvaluator{},
		SecurityEvaluator{},
		ADREvaluator{},
		SupplyChainEvaluator{},
		IntegrityEvaluator{},
		custom,
	)
}

// Lookup evaluator for a rule id
func (r *Registry) Lookup(ruleID string) (Evaluator, error) {
	fam, ok := models.FamilyOf(ruleID)
	if !ok {
		return nil, policy.NewConfigurationError(fmt.Sprintf("rule %q: unknown rule family", ruleID))
	}
	return r.evaluators[fam], nil
}

// Validate every declared rule, collecting all problems
func (r *Registry) Validate(p models.Policy) error {
	if p.Mode != "" && p.Mode.Rank() < 0 {
		return policy.NewConfigurationError(fmt.Sprintf("mode %q is not advisory or enforce", p.Mode))
	}

	var problems []string
	for _, id := range SortedRuleIDs(p) {
		cfg := p.Rules[id]
		e, err := r.Lookup(id)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: unknown rule family (known: %s)", id, knownFamilies()))
			continue
		}
		if !cfg.Severity.Valid() {
			problems = append(problems, fmt.Sprintf("rule %q: severity %q is not block, warn or info", id, cfg.Severity))
		}
		if err := e.Validate(id, cfg, p); err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: %v", id, err))
		}
	}
	if len(problems) > 0 {
		return policy.NewConfigurationError(problems...)
	}
	return nil
}

// Evaluate one rule. Unknown families are configuration errors.
func (r *Registry) Evaluate(id string, p models.Policy, ev models.Evidence) (models.RuleResult, error) {
	e, err := r.Lookup(id)
	if err != nil {
		return models.RuleResult{}, err
	}
	return e.Evaluate(id, p.Rules[id], p, ev), nil
}

// SortedRuleIDs deterministic evaluation order
func SortedRuleIDs(p models.Policy) []string {
	ids := make([]string, 0, len(p.Rules))
	for id := range p.Rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func knownFamilies() string {
	names := make([]string, 0, len(models.Families()))
	for _, f := range models.Families() {
		names = append(names, f.String())
	}
	return strings.Join(names, ", ")
}
