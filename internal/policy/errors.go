package policy

import (
	"fmt"
	"strings"
)

// ConfigurationError malformed policy or unknown rule family. Fatal.
type ConfigurationError struct {
	Problems []string
}

// NewConfigurationError from problems
func NewConfigurationError(problems ...string) *ConfigurationError {
	return &ConfigurationError{Problems: problems}
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid policy configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid policy configuration:\n  %s", strings.Join(e.Problems, "\n  "))
}

// MergeConstraintViolation repo override weakened a non-relaxable field
type MergeConstraintViolation struct {
	Field     string
	Base      interface{}
	Attempted interface{}
	Reason    string
}

func (e *MergeConstraintViolation) Error() string {
	msg := fmt.Sprintf("policy merge: %s may not be relaxed (base %s, attempted %s)",
		e.Field, formatValue(e.Base), formatValue(e.Attempted))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<unset>"
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
