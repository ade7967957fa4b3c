package gate

import "github.com/govgate/govgate/internal/models"

const (
	scoreBase      = 50
	blockPassBonus = 10
	blockFailCost  = 20
	warnPassBonus  = 5
)

// Score clamp(50 + sum of deltas, 0, 100). A waived block failure is
// neutral.
func Score(results []models.RuleResult) int {
	score := scoreBase
	for _, r := range results {
		score += delta(r)
	}
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

func delta(r models.RuleResult) int {
	switch r.Severity {
	case models.SeverityBlock:
		switch {
		case r.Result == models.OutcomePass:
			return blockPassBonus
		case r.Result == models.OutcomeFail && !r.Waived:
			return -blockFailCost
		}
	case models.SeverityWarn:
		if r.Result == models.OutcomePass {
			return warnPassBonus
		}
	}
	return 0
}
