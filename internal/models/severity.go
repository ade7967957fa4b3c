package models

import (
	"fmt"
	"strings"
)

// SecurityLevel ordinal, none=0 .. critical=4
type SecurityLevel int

const (
	LevelNone SecurityLevel = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = []string{"none", "low", "medium", "high", "critical"}

func (l SecurityLevel) String() string {
	if l < LevelNone || l > LevelCritical {
		return "unknown"
	}
	return levelNames[l]
}

// ParseSecurityLevel by name
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return SecurityLevel(i), nil
		}
	}
	return LevelNone, fmt.Errorf("invalid security level %q (use none, low, medium, high or critical)", s)
}

// ParseMaxSeverity returns the highest allowed level.
// Accepts a level name or "no-<level>", which allows everything below level.
func ParseMaxSeverity(s string) (SecurityLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if rest, ok := strings.CutPrefix(name, "no-"); ok {
		lvl, err := ParseSecurityLevel(rest)
		if err != nil {
			return LevelNone, fmt.Errorf("invalid max_severity %q", s)
		}
		if lvl == LevelNone {
			return LevelNone, fmt.Errorf("invalid max_severity %q: nothing is below none", s)
		}
		return lvl - 1, nil
	}
	lvl, err := ParseSecurityLevel(name)
	if err != nil {
		return LevelNone, fmt.Errorf("invalid max_severity %q", s)
	}
	return lvl, nil
}

// Severity of a rule: how much a failure matters
type Severity string

const (
	SeverityBlock Severity = "block"
	SeverityWarn  Severity = "warn"
	SeverityInfo  Severity = "info"
)

// Rank orders info < warn < block
func (s Severity) Rank() int {
	switch s {
	case SeverityBlock:
		return 2
	case SeverityWarn:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// Valid severity
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// Mode enforcement
type Mode string

const (
	ModeAdvisory Mode = "advisory"
	ModeEnforce  Mode = "enforce"
)

// Rank orders advisory < enforce
func (m Mode) Rank() int {
	switch m {
	case ModeEnforce:
		return 1
	case ModeAdvisory:
		return 0
	default:
		return -1
	}
}

// Outcome of one rule
type Outcome string

const (
	OutcomePass            Outcome = "pass"
	OutcomeWarn            Outcome = "warn"
	OutcomeFail            Outcome = "fail"
	OutcomeMissingEvidence Outcome = "missing_evidence"
)

// Status of the whole gate
type Status string

const (
	StatusPassed             Status = "passed"
	StatusPassedWithWarnings Status = "passed_with_warnings"
	StatusFailed             Status = "failed"
)
