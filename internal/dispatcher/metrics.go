package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics instruments the dispatch pipeline. A caller-supplied registerer
// keeps tests isolated from the default registry.
type metrics struct {
	eventsConsumed  *prometheus.CounterVec
	callbacks       *prometheus.CounterVec
	skippedInflight prometheus.Counter
	evalErrors      prometheus.Counter
	dispatchSeconds prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		eventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faas",
			Subsystem: "dispatcher",
			Name:      "events_consumed_total",
			Help:      "Events consumed from the source fan-in, by source tag.",
		}, []string{"source"}),
		callbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "faas",
			Subsystem: "dispatcher",
			Name:      "callbacks_total",
			Help:      "Callback dispatches by terminal status.",
		}, []string{"status"}),
		skippedInflight: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faas",
			Subsystem: "dispatcher",
			Name:      "skipped_inflight_total",
			Help:      "Matches dropped because the trigger already had a callback in flight.",
		}),
		evalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "faas",
			Subsystem: "dispatcher",
			Name:      "evaluation_errors_total",
			Help:      "Trigger condition evaluations that returned an error.",
		}),
		dispatchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "faas",
			Subsystem: "dispatcher",
			Name:      "dispatch_duration_seconds",
			Help:      "Wall-clock duration of one callback dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsConsumed, m.callbacks, m.skippedInflight, m.evalErrors, m.dispatchSeconds)
	}
	return m
}
