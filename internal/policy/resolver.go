package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/govgate/govgate/internal/models"
)

// Resolver merges org baselines with repository overrides
type Resolver struct {
	floor Document
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithFloor sets org-mandatory minimums. They are enforced on every merge,
// including repositories that declare `extends: none`.
func WithFloor(floor Document) ResolverOption {
	return func(r *Resolver) {
		r.floor = floor.Clone()
	}
}

// NewResolver constructor
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Merge with the default resolver (no floor)
func Merge(base, override Document) (*models.EffectivePolicy, error) {
	return NewResolver().Merge(base, override)
}

// Merge base and override into an effective policy. A weakened
// non-relaxable field returns *MergeConstraintViolation and no policy.
func (r *Resolver) Merge(base, override Document) (*models.EffectivePolicy, error) {
	var (
		merged map[string]interface{}
		prov   map[string]models.Provenance
		err    error
	)

	if override.Extends() == ExtendsNone {
		merged = deepCopy(map[string]interface{}(override)).(map[string]interface{})
		prov = map[string]models.Provenance{}
		markLeaves(prov, nil, merged, models.FromOverride)
	} else {
		m := &merger{prov: map[string]models.Provenance{}}
		merged, err = m.mergeMap(nil, asMap(base), asMap(override))
		if err != nil {
			return nil, err
		}
		prov = m.prov
	}

	if r.floor != nil {
		m := &merger{prov: map[string]models.Provenance{}, prior: prov}
		merged, err = m.mergeMap(nil, asMap(r.floor), merged)
		if err != nil {
			return nil, err
		}
		prov = m.prov
	}

	doc := Document(merged)
	typed, err := Decode(doc)
	if err != nil {
		return nil, err
	}

	return &models.EffectivePolicy{
		Policy:     typed,
		Document:   merged,
		Provenance: prov,
	}, nil
}

// merger one merge pass. prior carries provenance of the override side
// from an earlier pass.
type merger struct {
	prov  map[string]models.Provenance
	prior map[string]models.Provenance
}

func (m *merger) mergeMap(path []string, base, override map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(base)+len(override))
	for k, v := range base {
		out[k] = deepCopy(v)
		if _, shadowed := override[k]; !shadowed {
			markLeaves(m.prov, appendPath(path, k), v, models.FromBase)
		}
	}

	// sorted so the first violation reported is stable
	keys := make([]string, 0, len(override))
	for k := range override {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		ov := override[k]
		p := appendPath(path, k)
		bv, exists := base[k]
		if !exists {
			// an unset param still has an implied value the override must keep
			if c := constraintFor(p); c != nil && c.implied != nil {
				if err := c.check(p, c.implied(p), ov); err != nil {
					return nil, err
				}
			}
			out[k] = deepCopy(ov)
			m.markOverride(p, ov)
			continue
		}

		bm, bIsMap := toMap(bv)
		om, oIsMap := toMap(ov)
		if bIsMap && oIsMap {
			child, err := m.mergeMap(p, bm, om)
			if err != nil {
				return nil, err
			}
			out[k] = child
			continue
		}

		bs, bIsSlice := bv.([]interface{})
		ol, oIsSlice := ov.([]interface{})
		if bIsSlice && oIsSlice {
			out[k] = union(bs, ol)
			m.prov[fieldName(p)] = models.FromMerged
			continue
		}

		if bIsMap && isRuleSet(p) {
			return nil, &MergeConstraintViolation{
				Field:     fieldName(p),
				Base:      bv,
				Attempted: ov,
				Reason:    "baseline rules may be tightened but not removed",
			}
		}
		if c := constraintFor(p); c != nil {
			if err := c.check(p, bv, ov); err != nil {
				return nil, err
			}
		}
		out[k] = deepCopy(ov)
		m.markOverride(p, ov)
	}
	return out, nil
}

// isRuleSet is rules or rules.<id>, the maps an override may only extend
func isRuleSet(path []string) bool {
	return len(path) >= 1 && len(path) <= 2 && path[0] == "rules"
}

func (m *merger) markOverride(path []string, v interface{}) {
	if m.prior == nil {
		markLeaves(m.prov, path, v, models.FromOverride)
		return
	}
	// carry the earlier pass's provenance for everything under path
	prefix := fieldName(path)
	for k, src := range m.prior {
		if k == prefix || strings.HasPrefix(k, prefix+".") {
			m.prov[k] = src
		}
	}
}

func markLeaves(prov map[string]models.Provenance, path []string, v interface{}, src models.Provenance) {
	if mv, ok := toMap(v); ok && len(mv) > 0 {
		for k, child := range mv {
			markLeaves(prov, appendPath(path, k), child, src)
		}
		return
	}
	if len(path) > 0 {
		prov[fieldName(path)] = src
	}
}

// union keeps base order, then appends override items not already present
func union(base, override []interface{}) []interface{} {
	out := make([]interface{}, 0, len(base)+len(override))
	seen := make(map[string]bool, len(base)+len(override))
	for _, list := range [][]interface{}{base, override} {
		for _, item := range list {
			key := itemKey(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, deepCopy(item))
		}
	}
	return out
}

func itemKey(v interface{}) string {
	if f, ok := toFloat(v); ok {
		return fmt.Sprintf("n:%v", f)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return map[string]interface{}(m), true
	default:
		return nil, false
	}
}

func asMap(d Document) map[string]interface{} {
	if d == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}(d)
}

func appendPath(path []string, k string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, k)
}

// fieldName dotted path, e.g. rules.coverage.min.threshold
func fieldName(path []string) string {
	return strings.Join(path, ".")
}
