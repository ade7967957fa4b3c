// Package gate turns an effective policy, evidence and waivers into one
// Decision. Nothing in here performs I/O or reads the clock.
package gate

import (
	"fmt"
	"sync"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/policy"
	"github.com/govgate/govgate/internal/rules"
	"github.com/govgate/govgate/internal/waiver"
)

// Report side information the Decision does not carry
type Report struct {
	Diagnostics []waiver.Diagnostic
	Evaluated   int
	Waived      int
}

// Engine evaluates policies with a fixed evaluator registry
type Engine struct {
	registry *rules.Registry
}

// NewEngine with the given registry
func NewEngine(registry *rules.Registry) *Engine {
	return &Engine{registry: registry}
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Default engine backed by rules.DefaultRegistry
func Default() (*Engine, error) {
	defaultOnce.Do(func() {
		reg, err := rules.DefaultRegistry()
		if err != nil {
			defaultErr = fmt.Errorf("failed to build rule registry: %w", err)
			return
		}
		defaultEngine = NewEngine(reg)
	})
	return defaultEngine, defaultErr
}

// Evaluate with the default engine
func Evaluate(effective *models.EffectivePolicy, ev models.Evidence, waivers []models.Waiver, now time.Time) (models.Decision, Report, error) {
	e, err := Default()
	if err != nil {
		return models.Decision{}, Report{}, err
	}
	return e.Evaluate(effective, ev, waivers, now)
}

// Evaluate runs every declared rule, applies waivers as of now and
// assembles the decision. Configuration errors return no decision.
func (e *Engine) Evaluate(effective *models.EffectivePolicy, ev models.Evidence, waivers []models.Waiver, now time.Time) (models.Decision, Report, error) {
	if effective == nil {
		return models.Decision{}, Report{}, policy.NewConfigurationError("no effective policy")
	}
	p := effective.Policy
	if err := e.registry.Validate(p); err != nil {
		return models.Decision{}, Report{}, err
	}

	ids := rules.SortedRuleIDs(p)
	results := make([]models.RuleResult, 0, len(ids))
	for _, id := range ids {
		res, err := e.registry.Evaluate(id, p, ev)
		if err != nil {
			return models.Decision{}, Report{}, err
		}
		results = append(results, res)
	}

	var opts waiver.Options
	if ev.Meta != nil {
		opts.Repository = ev.Meta.Repository
	}
	results, used, diags := waiver.Apply(results, waivers, now, opts)

	status := Status(results)
	score := Score(results)
	decision := Assemble(results, used, status, score, now, p.PolicyVersion)

	report := Report{Diagnostics: diags, Evaluated: len(results)}
	for _, r := range results {
		if r.Waived {
			report.Waived++
		}
	}
	return decision, report, nil
}
