package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks reconciliation runs and the flags they write.
type Metrics struct {
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	FlagsCreated   prometheus.Counter
	FlagsRefreshed prometheus.Counter
}

// NewMetrics registers the reconciliation metrics on reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lted_reconcile_runs_total",
			Help: "Reconciliation runs by outcome (ok, skipped, failed)",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lted_reconcile_run_duration_seconds",
			Help:    "Duration of completed reconciliation runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		FlagsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lted_reconcile_flags_created_total",
			Help: "Pending eligibility flags created",
		}),
		FlagsRefreshed: f.NewCounter(prometheus.CounterOpts{
			Name: "lted_reconcile_flags_refreshed_total",
			Help: "Pending eligibility flags whose details or provenance changed",
		}),
	}
}

func (m *Metrics) observeRun(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if outcome == outcomeOK {
		m.RunDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) addCreated(n int) {
	if m != nil && n > 0 {
		m.FlagsCreated.Add(float64(n))
	}
}

func (m *Metrics) addRefreshed(n int) {
	if m != nil && n > 0 {
		m.FlagsRefreshed.Add(float64(n))
	}
}
