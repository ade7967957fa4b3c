package models

import "strings"

// Family of a rule, resolved from the rule id prefix
type Family int

const (
	FamilyTests Family = iota
	FamilyCoverage
	FamilySecurity
	FamilyADR
	FamilySupplyChain
	FamilyIntegrity
	FamilyCustom

	familyCount
)

var familyPrefixes = [familyCount]string{
	FamilyTests:       "tests",
	FamilyCoverage:    "coverage",
	FamilySecurity:    "security",
	FamilyADR:         "adr",
	FamilySupplyChain: "supplychain",
	FamilyIntegrity:   "integrity",
	FamilyCustom:      "custom",
}

// Families lists every family in declaration order
func Families() []Family {
	out := make([]Family, 0, familyCount)
	for f := Family(0); f < familyCount; f++ {
		out = append(out, f)
	}
	return out
}

func (f Family) String() string {
	if f < 0 || f >= familyCount {
		return "unknown"
	}
	return familyPrefixes[f]
}

// FamilyOf resolves "coverage.min" -> FamilyCoverage. A bare family name
// without a dot is accepted too ("tests").
func FamilyOf(ruleID string) (Family, bool) {
	prefix, _, _ := strings.Cut(ruleID, ".")
	for f := Family(0); f < familyCount; f++ {
		if familyPrefixes[f] == prefix {
			return f, true
		}
	}
	return 0, false
}
