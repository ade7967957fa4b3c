package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/govgate/govgate/internal/models"
	"github.com/wI2L/jsondiff"
)

// Change one field the override changed relative to the baseline
type Change struct {
	Op           string      `json:"op"`
	Path         string      `json:"path"`
	Value        interface{} `json:"value,omitempty"`
	Previous     interface{} `json:"previous,omitempty"`
	NonRelaxable bool        `json:"non_relaxable"`
}

// Explain diffs the baseline against the effective policy
func Explain(base Document, effective *models.EffectivePolicy) ([]Change, error) {
	patch, err := jsondiff.Compare(
		map[string]interface{}(asMap(base)),
		effective.Document,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to diff policies: %w", err)
	}

	changes := make([]Change, 0, len(patch))
	for _, op := range patch {
		if op.Type == jsondiff.OperationTest {
			continue
		}
		changes = append(changes, Change{
			Op:           op.Type,
			Path:         op.Path,
			Value:        op.Value,
			Previous:     op.OldValue,
			NonRelaxable: NonRelaxable(pointerSegments(op.Path)...),
		})
	}

	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}

// Describe one line per change
func Describe(changes []Change) []string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		field := strings.Join(pointerSegments(c.Path), ".")
		var line string
		switch c.Op {
		case jsondiff.OperationAdd:
			line = fmt.Sprintf("added %s = %s", field, formatValue(c.Value))
		case jsondiff.OperationRemove:
			line = fmt.Sprintf("removed %s", field)
		case jsondiff.OperationReplace:
			line = fmt.Sprintf("changed %s: %s -> %s", field, formatValue(c.Previous), formatValue(c.Value))
		default:
			line = fmt.Sprintf("%s %s", c.Op, field)
		}
		if c.NonRelaxable {
			line += " (non-relaxable)"
		}
		lines = append(lines, line)
	}
	return lines
}

// pointerSegments splits an RFC 6901 pointer
func pointerSegments(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return nil
	}
	parts := strings.Split(ptr, "/")
	for i, p := range parts {
		p = strings.ReplaceAll(p, "~1", "/")
		parts[i] = strings.ReplaceAll(p, "~0", "~")
	}
	return parts
}
