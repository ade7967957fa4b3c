package gate

import "github.com/govgate/govgate/internal/models"

// Status failed on any unwaived block failure, passed_with_warnings when
// anything else is short of pass.
func Status(results []models.RuleResult) models.Status {
	status := models.StatusPassed
	for _, r := range results {
		if r.Blocking() {
			return models.StatusFailed
		}
		if r.Result != models.OutcomePass {
			status = models.StatusPassedWithWarnings
		}
	}
	return status
}
