package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics records metadata for scheduler sweeps.
type SchedulerMetrics struct {
	duration prometheus.Histogram
	success  prometheus.Counter
	failure  prometheus.Counter
	due      prometheus.Counter
}

// NewSchedulerMetrics registers the scheduler metrics on the provided registerer.
func NewSchedulerMetrics(reg prometheus.Registerer) *SchedulerMetrics {
	if reg == nil {
		return &SchedulerMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scheduler_sweep_duration_seconds",
		Help:    "Duration of scheduler sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sweep_success_total",
		Help: "Completed scheduler sweeps.",
	})
	failure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_sweep_failure_total",
		Help: "Scheduler sweeps that failed before completing.",
	})
	due := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_rules_due_total",
		Help: "Schedule-triggered rules submitted for execution.",
	})
	reg.MustRegister(duration, success, failure, due)
	return &SchedulerMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		due:      due,
	}
}

// ObserveSweep records the duration for one sweep.
func (s *SchedulerMetrics) ObserveSweep(duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.Observe(duration.Seconds())
}

// IncSuccess increments the sweep success counter.
func (s *SchedulerMetrics) IncSuccess() {
	if s == nil || s.success == nil {
		return
	}
	s.success.Inc()
}

// IncFailure increments the sweep failure counter.
func (s *SchedulerMetrics) IncFailure() {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.Inc()
}

// IncDue counts a rule submitted because its schedule was due.
func (s *SchedulerMetrics) IncDue() {
	if s == nil || s.due == nil {
		return
	}
	s.due.Inc()
}
