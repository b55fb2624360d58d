package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCheckout_countsOutcomeAndOrders(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.ObserveCheckout("committed", 3)
	m.ObserveCheckout("insufficient_stock", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("insufficient_stock")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Orders))
}

func TestNilMetrics_noop(t *testing.T) {
	var m *Metrics
	m.ObserveCheckout("committed", 1)
	m.ObserveRequest("/healthz", "200", 1)
}
