// Package metrics exports a decision as Prometheus gauges in the textfile
// collector format, for node_exporter or a CI dashboard to scrape.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/govgate/govgate/internal/models"
)

const namespace = "govgate"

// Gate metrics of one evaluation. Each Gate owns its registry so runs never
// leak series into each other.
type Gate struct {
	reg *prometheus.Registry

	status          *prometheus.GaugeVec
	score           prometheus.Gauge
	rules           *prometheus.GaugeVec
	waiversUsed     prometheus.Gauge
	waiversRejected prometheus.Gauge
	missingEvidence prometheus.Gauge
	lastRun         prometheus.Gauge
}

func NewGate() *Gate {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Gate{
		reg: reg,
		status: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "decision_status",
				Help:      "1 for the status of the last decision, 0 for the others",
			},
			[]string{"status", "policy_version"},
		),
		score: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "decision_score",
			Help:      "Health score of the last decision (0-100)",
		}),
		rules: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "rule_result",
				Help:      "1 for the result of each rule in the last decision",
			},
			[]string{"rule", "severity", "result", "waived"},
		),
		waiversUsed: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waivers_used",
			Help:      "Waivers applied to the last decision",
		}),
		waiversRejected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waivers_rejected",
			Help:      "Waivers rejected with a diagnostic in the last evaluation",
		}),
		missingEvidence: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missing_evidence_rules",
			Help:      "Rules that failed for missing evidence",
		}),
		lastRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Evaluation time of the last decision",
		}),
	}
}

var statuses = []models.Status{models.StatusPassed, models.StatusPassedWithWarnings, models.StatusFailed}

// Observe d and the number of rejected waivers
func (g *Gate) Observe(d models.Decision, rejected int) {
	for _, s := range statuses {
		v := 0.0
		if s == d.Status {
			v = 1
		}
		g.status.WithLabelValues(string(s), d.PolicyVersion).Set(v)
	}
	g.score.Set(float64(d.Score))
	for _, r := range d.Rules {
		g.rules.WithLabelValues(r.ID, string(r.Severity), string(r.Result), strconv.FormatBool(r.Waived)).Set(1)
	}
	g.waiversUsed.Set(float64(len(d.WaiversUsed)))
	g.waiversRejected.Set(float64(rejected))
	g.missingEvidence.Set(float64(len(d.MissingEvidence)))
	if ts, err := time.Parse(time.RFC3339, d.Timestamp); err == nil {
		g.lastRun.Set(float64(ts.Unix()))
	}
}

// Registry for tests and in-process scraping
func (g *Gate) Registry() *prometheus.Registry {
	return g.reg
}

// WriteTextfile atomically replaces path with the current values
func (g *Gate) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, g.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
