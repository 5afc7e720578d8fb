package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementTransition("accept", "applied")
	m.IncrementTransition("accept", "applied")
	m.IncrementCapacityRejection()
	m.ObserveAcceptLatency(10 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("accept", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapacityRejections))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementTransition("reject", "conflict")
		m.ObserveAcceptLatency(time.Second)
		m.IncrementCapacityRejection()
	})
}
