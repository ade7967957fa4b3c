package gate

import (
	"sort"
	"time"

	"github.com/govgate/govgate/internal/models"
)

// Assemble the decision. Every slice is copied so later changes to the
// inputs cannot reach it.
func Assemble(results []models.RuleResult, used []models.Waiver, status models.Status, score int, now time.Time, policyVersion string) models.Decision {
	rs := make([]models.RuleResult, len(results))
	copy(rs, results)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })

	ws := make([]models.Waiver, len(used))
	copy(ws, used)

	missing := []string{}
	for _, r := range rs {
		// required and optional absences both count
		if r.MissingEvidence || r.Result == models.OutcomeMissingEvidence {
			missing = append(missing, r.ID)
		}
	}
	sort.Strings(missing)

	return models.Decision{
		Status:          status,
		Score:           score,
		Rules:           rs,
		WaiversUsed:     ws,
		MissingEvidence: missing,
		Timestamp:       now.UTC().Format(time.RFC3339),
		PolicyVersion:   policyVersion,
	}
}
