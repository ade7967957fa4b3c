package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/govgate/govgate/internal/models"
)

// costLimit bounds a single custom expression evaluation
const costLimit = 100000

// CustomEvaluator runs a CEL boolean expression over the evidence.
// Variables: evidence (map of domains, absent domains are missing keys)
// and rule (the rule id).
type CustomEvaluator struct {
	env *cel.Env
}

func NewCustomEvaluator() (*CustomEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("evidence", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("rule", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CustomEvaluator{env: env}, nil
}

func (c *CustomEvaluator) Family() models.Family { return models.FamilyCustom }

func (c *CustomEvaluator) Validate(_ string, cfg models.RuleConfig, _ models.Policy) error {
	_, err := c.program(cfg.Expr)
	return err
}

func (c *CustomEvaluator) Evaluate(id string, cfg models.RuleConfig, _ models.Policy, ev models.Evidence) models.RuleResult {
	prg, err := c.program(cfg.Expr)
	if err != nil {
		return fail(id, cfg, "%v", err)
	}

	input, err := ev.ToMap()
	if err != nil {
		return fail(id, cfg, "evidence conversion: %v", err)
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"evidence": input,
		"rule":     id,
	})
	if err != nil {
		return fail(id, cfg, "CEL evaluation error: %v", err)
	}

	held, ok := out.Value().(bool)
	if !ok {
		return fail(id, cfg, "expression must return boolean, got %T", out.Value())
	}
	if held {
		return pass(id, cfg, "expression held")
	}
	if cfg.FailureMsg != "" {
		return fail(id, cfg, "%s", cfg.FailureMsg)
	}
	return fail(id, cfg, "expression %q evaluated to false", cfg.Expr)
}

func (c *CustomEvaluator) program(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, fmt.Errorf("expr is required")
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return boolean, got %s", t)
	}
	prg, err := c.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	return prg, nil
}
