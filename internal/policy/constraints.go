package policy

import (
	"fmt"
	"strings"

	"github.com/govgate/govgate/internal/models"
)

// constraint a non-relaxable field: an override must be equal or stricter
type constraint struct {
	name    string
	matches func(path []string) bool
	// stricterOrEqual reports whether attempted is no weaker than base
	stricterOrEqual func(base, attempted interface{}) (bool, error)
	// implied value when the base leaves the field unset; nil means any
	// override of an unset field is accepted
	implied func(path []string) interface{}
}

func (c *constraint) check(path []string, base, attempted interface{}) error {
	ok, err := c.stricterOrEqual(base, attempted)
	if err == nil && ok {
		return nil
	}
	v := &MergeConstraintViolation{Field: fieldName(path), Base: base, Attempted: attempted}
	if err != nil {
		v.Reason = err.Error()
	}
	return v
}

// nonRelaxable fields of a policy document
var nonRelaxable = []constraint{
	{
		name:            "mode",
		matches:         topLevel("mode"),
		stricterOrEqual: rankCompare(modeRank),
	},
	{
		name:            "coverage_min",
		matches:         topLevel("coverage_min"),
		stricterOrEqual: higherNumber,
	},
	{
		name:            "coverage threshold",
		matches:         ruleParam("threshold", models.FamilyCoverage),
		stricterOrEqual: higherNumber,
	},
	{
		name:            "security max_severity",
		matches:         ruleParam("max_severity", models.FamilySecurity),
		stricterOrEqual: lowerMaxSeverity,
	},
	{
		name:            "security scanner",
		matches:         ruleParam("scanner", models.FamilySecurity),
		stricterOrEqual: sameWord,
		implied: func(path []string) interface{} {
			_, scanner, _ := strings.Cut(path[1], ".")
			scanner, _, _ = strings.Cut(scanner, ".")
			return scanner
		},
	},
	{
		name:            "coverage metric",
		matches:         ruleParam("metric", models.FamilyCoverage),
		stricterOrEqual: sameWord,
		implied:         func([]string) interface{} { return "line" },
	},
	{
		name:            "rule severity",
		matches:         ruleParam("severity"),
		stricterOrEqual: rankCompare(severityRank),
	},
	{
		name:            "requires_evidence",
		matches:         ruleParam("requires_evidence"),
		stricterOrEqual: trueIsStricter,
	},
	{
		name:            "require_signed",
		matches:         ruleParam("require_signed", models.FamilySupplyChain, models.FamilyIntegrity),
		stricterOrEqual: trueIsStricter,
	},
	{
		name:            "require_sbom",
		matches:         ruleParam("require_sbom", models.FamilySupplyChain, models.FamilyIntegrity),
		stricterOrEqual: trueIsStricter,
	},
	{
		name:            "require_pinned_images",
		matches:         ruleParam("require_pinned_images", models.FamilySupplyChain, models.FamilyIntegrity),
		stricterOrEqual: trueIsStricter,
	},
	{
		name:            "adr required",
		matches:         ruleParam("required", models.FamilyADR),
		stricterOrEqual: trueIsStricter,
	},
}

func constraintFor(path []string) *constraint {
	for i := range nonRelaxable {
		if nonRelaxable[i].matches(path) {
			return &nonRelaxable[i]
		}
	}
	return nil
}

// NonRelaxable reports whether a dotted field path is protected
func NonRelaxable(path ...string) bool {
	return constraintFor(path) != nil
}

func topLevel(key string) func([]string) bool {
	return func(path []string) bool {
		return len(path) == 1 && path[0] == key
	}
}

// ruleParam matches rules.<id>.<key>, optionally only for some families
func ruleParam(key string, families ...models.Family) func([]string) bool {
	return func(path []string) bool {
		if len(path) != 3 || path[0] != "rules" || path[2] != key {
			return false
		}
		if len(families) == 0 {
			return true
		}
		fam, ok := models.FamilyOf(path[1])
		if !ok {
			return false
		}
		for _, f := range families {
			if f == fam {
				return true
			}
		}
		return false
	}
}

func higherNumber(base, attempted interface{}) (bool, error) {
	b, ok := toFloat(base)
	if !ok {
		return false, fmt.Errorf("base value is not a number")
	}
	a, ok := toFloat(attempted)
	if !ok {
		return false, fmt.Errorf("attempted value is not a number")
	}
	return a >= b, nil
}

func lowerMaxSeverity(base, attempted interface{}) (bool, error) {
	bs, _ := base.(string)
	b, err := models.ParseMaxSeverity(bs)
	if err != nil {
		return false, fmt.Errorf("base: %w", err)
	}
	as, _ := attempted.(string)
	a, err := models.ParseMaxSeverity(as)
	if err != nil {
		return false, fmt.Errorf("attempted: %w", err)
	}
	return a <= b, nil
}

func trueIsStricter(base, attempted interface{}) (bool, error) {
	b, ok := base.(bool)
	if !ok {
		return false, fmt.Errorf("base value is not a boolean")
	}
	a, ok := attempted.(bool)
	if !ok {
		return false, fmt.Errorf("attempted value is not a boolean")
	}
	return a || !b, nil
}

// sameWord the field selects what is measured, so only an equal value is
// no weaker
func sameWord(base, attempted interface{}) (bool, error) {
	bs, ok := base.(string)
	if !ok {
		return false, fmt.Errorf("base value is not a string")
	}
	as, ok := attempted.(string)
	if !ok {
		return false, fmt.Errorf("attempted value is not a string")
	}
	return strings.EqualFold(strings.TrimSpace(as), strings.TrimSpace(bs)), nil
}

func rankCompare(rank func(string) int) func(base, attempted interface{}) (bool, error) {
	return func(base, attempted interface{}) (bool, error) {
		bs, _ := base.(string)
		b := rank(bs)
		if b < 0 {
			return false, fmt.Errorf("unknown base value")
		}
		as, _ := attempted.(string)
		a := rank(as)
		if a < 0 {
			return false, fmt.Errorf("unknown attempted value")
		}
		return a >= b, nil
	}
}

func modeRank(s string) int {
	return models.Mode(strings.ToLower(s)).Rank()
}

func severityRank(s string) int {
	return models.Severity(strings.ToLower(s)).Rank()
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
