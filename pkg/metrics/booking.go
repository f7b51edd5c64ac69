package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// BookingMetrics tracks booking lifecycle operations.
type BookingMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	promotions *prometheus.CounterVec
}

// NewBookingMetrics registers booking metrics. A nil registerer yields a no-op recorder.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	m := &BookingMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "booking",
			Name:      "operations_total",
			Help:      "Booking operations partitioned by operation and error code.",
		}, []string{"operation", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "booking",
			Name:      "operation_duration_seconds",
			Help:      "Latency of booking operations including the transaction.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "signup",
			Name:      "lead_promotions_total",
			Help:      "Signups partitioned by whether a lead was promoted.",
		}, []string{"promoted"}),
	}
	reg.MustRegister(m.operations, m.latency, m.promotions)
	return m
}

// Observe records one finished operation. code is "ok" or the error code.
func (m *BookingMetrics) Observe(operation, code string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.operations.WithLabelValues(normalizeLabel(operation), code).Inc()
	m.latency.WithLabelValues(normalizeLabel(operation)).Observe(d.Seconds())
}

// IncSignup records a signup and whether it carried over lead bookings.
func (m *BookingMetrics) IncSignup(promoted bool) {
	if m == nil || m.promotions == nil {
		return
	}
	label := "false"
	if promoted {
		label = "true"
	}
	m.promotions.WithLabelValues(label).Inc()
}
