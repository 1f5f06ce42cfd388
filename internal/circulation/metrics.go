// internal/circulation/metrics.go
package circulation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"libris/internal/apperr"
)

// Metrics collects circulation outcome counters and transaction timings.
type Metrics struct {
	outcomes  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics registers the circulation metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "libris",
			Subsystem: "circulation",
			Name:      "operations_total",
			Help:      "Circulation operations by kind and outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "libris",
			Subsystem: "circulation",
			Name:      "operation_duration_seconds",
			Help:      "Duration of circulation operations including retries.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.outcomes, m.durations)
	return m
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		if kind, ok := apperr.KindOf(err); ok {
			outcome = string(kind)
		} else {
			outcome = "error"
		}
	}
	m.outcomes.WithLabelValues(operation, outcome).Inc()
	m.durations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
