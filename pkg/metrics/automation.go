package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AutomationMetrics records rule engine outcomes.
type AutomationMetrics struct {
	runs             *prometheus.CounterVec
	runDuration      prometheus.Histogram
	actions          *prometheus.CounterVec
	cyclesSuppressed prometheus.Counter
	overlapsSkipped  prometheus.Counter
}

// NewAutomationMetrics registers the rule engine metrics on the provided registerer.
func NewAutomationMetrics(reg prometheus.Registerer) *AutomationMetrics {
	if reg == nil {
		return &AutomationMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_rule_runs_total",
		Help: "Completed rule executions by overall status.",
	}, []string{"status"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "automation_rule_run_duration_seconds",
		Help:    "Duration of rule executions in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_actions_total",
		Help: "Individual action invocations by status.",
	}, []string{"status"})
	cyclesSuppressed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automation_cycles_suppressed_total",
		Help: "Dispatches refused because the causation depth bound was exceeded.",
	})
	overlapsSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "automation_schedule_overlaps_skipped_total",
		Help: "Schedule ticks skipped because the rule was still running.",
	})
	reg.MustRegister(runs, runDuration, actions, cyclesSuppressed, overlapsSkipped)
	return &AutomationMetrics{
		runs:             runs,
		runDuration:      runDuration,
		actions:          actions,
		cyclesSuppressed: cyclesSuppressed,
		overlapsSkipped:  overlapsSkipped,
	}
}

// ObserveRun records a completed rule execution.
func (a *AutomationMetrics) ObserveRun(status string, duration time.Duration) {
	if a == nil || a.runs == nil {
		return
	}
	a.runs.WithLabelValues(status).Inc()
	a.runDuration.Observe(duration.Seconds())
}

// IncAction records a single action outcome.
func (a *AutomationMetrics) IncAction(status string) {
	if a == nil || a.actions == nil {
		return
	}
	a.actions.WithLabelValues(status).Inc()
}

// IncCycleSuppressed records a causation-depth suppression.
func (a *AutomationMetrics) IncCycleSuppressed() {
	if a == nil || a.cyclesSuppressed == nil {
		return
	}
	a.cyclesSuppressed.Inc()
}

// IncOverlapSkipped records a schedule tick skipped for an in-flight rule.
func (a *AutomationMetrics) IncOverlapSkipped() {
	if a == nil || a.overlapsSkipped == nil {
		return
	}
	a.overlapsSkipped.Inc()
}
