package cli

import (
	"testing"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/waiver"
)

func TestCheckWaivers(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	valid := models.Waiver{Rule: "security.sca", Scope: "security.sca", TTL: "2026-04-01", Approver: "appsec"}
	expired := valid
	expired.TTL = "2026-02-01"
	unknown := valid
	unknown.Rule, unknown.Scope = "security.dast", "security.dast"
	otherRepo := valid
	otherRepo.Scope = "acme/billing"
	repoScoped := valid
	repoScoped.Scope = "acme/payments"

	p := &models.Policy{Rules: map[string]models.RuleConfig{
		"security.sca": {Severity: models.SeverityBlock},
		"tests.unit":   {Severity: models.SeverityBlock},
	}}

	tests := []struct {
		name     string
		waivers  []models.Waiver
		policy   *models.Policy
		wantCode []string // "" for accepted
	}{
		{"structural only", []models.Waiver{valid, expired, unknown}, nil, []string{"", waiver.CodeExpired, ""}},
		{"against policy", []models.Waiver{valid, unknown}, p, []string{"", waiver.CodeUnknownRule}},
		{"repository scope", []models.Waiver{repoScoped, otherRepo}, p, []string{"", waiver.CodeScopeMismatch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checkWaivers(tt.waivers, tt.policy, now, "acme/payments")
			if len(got) != len(tt.wantCode) {
				t.Fatalf("got %d statuses", len(got))
			}
			for i, want := range tt.wantCode {
				s := got[i]
				if want == "" {
					if !s.Accepted {
						t.Errorf("#%d rejected: %v", i, s.Diagnostic)
					}
					continue
				}
				if s.Accepted || s.Diagnostic == nil || s.Diagnostic.Code != want {
					t.Errorf("#%d = %+v, want %s", i, s, want)
				}
			}
		})
	}
}
