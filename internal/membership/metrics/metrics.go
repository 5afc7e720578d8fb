package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for membership transitions.
type Metrics struct {
	// Transitions by kind (submit, accept, reject, ...) and outcome
	// (applied, ineligible, conflict, invalid, failed)
	Transitions *prometheus.CounterVec

	// Accept latency including the committee lock wait
	AcceptLatency prometheus.Histogram

	// Capacity rejections at acceptance time
	CapacityRejections prometheus.Counter
}

// New registers the membership metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lted_membership_transitions_total",
			Help: "Membership transitions by kind and outcome",
		}, []string{"kind", "outcome"}),

		AcceptLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lted_membership_accept_duration_seconds",
			Help:    "Duration of membership acceptance including the committee lock wait",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		CapacityRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "lted_membership_capacity_rejections_total",
			Help: "Acceptances turned into rejections because the committee was full",
		}),
	}
}

// IncrementTransition records one transition attempt.
func (m *Metrics) IncrementTransition(kind, outcome string) {
	if m != nil {
		m.Transitions.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveAcceptLatency records the duration of one acceptance.
func (m *Metrics) ObserveAcceptLatency(d time.Duration) {
	if m != nil {
		m.AcceptLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementCapacityRejection() {
	if m != nil {
		m.CapacityRejections.Inc()
	}
}
