package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BusMetrics records event bus throughput and delivery outcomes.
type BusMetrics struct {
	published       prometheus.Counter
	dropped         prometheus.Counter
	handlerFailures prometheus.Counter
	queueDepth      prometheus.Gauge
}

// NewBusMetrics registers the event bus metrics on the provided registerer.
func NewBusMetrics(reg prometheus.Registerer) *BusMetrics {
	if reg == nil {
		return &BusMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bus_events_published_total",
		Help: "Events accepted by the bus.",
	})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bus_deliveries_dropped_total",
		Help: "Deliveries dropped because the dispatch queue was full.",
	})
	handlerFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bus_handler_failures_total",
		Help: "Subscriber handler invocations that returned an error or panicked.",
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bus_queue_depth",
		Help: "Deliveries waiting in the dispatch queue.",
	})
	reg.MustRegister(published, dropped, handlerFailures, queueDepth)
	return &BusMetrics{
		published:       published,
		dropped:         dropped,
		handlerFailures: handlerFailures,
		queueDepth:      queueDepth,
	}
}

// IncPublished counts an accepted publish call.
func (b *BusMetrics) IncPublished() {
	if b == nil || b.published == nil {
		return
	}
	b.published.Inc()
}

// IncDropped counts a delivery rejected by a full queue.
func (b *BusMetrics) IncDropped() {
	if b == nil || b.dropped == nil {
		return
	}
	b.dropped.Inc()
}

// IncHandlerFailure counts a failed subscriber invocation.
func (b *BusMetrics) IncHandlerFailure() {
	if b == nil || b.handlerFailures == nil {
		return
	}
	b.handlerFailures.Inc()
}

// SetQueueDepth reports the current dispatch queue backlog.
func (b *BusMetrics) SetQueueDepth(depth int) {
	if b == nil || b.queueDepth == nil {
		return
	}
	b.queueDepth.Set(float64(depth))
}
