package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBookingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveTransition("select_department", "ok")
	m.ObserveTransition("select_department", "ok")
	m.ObserveIgnored("select_doctor")
	m.ObserveBooking("ok", "online")
	m.ObserveCancellation("rejected")
	m.ObserveLookup("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("select_department", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ignored.WithLabelValues("select_doctor")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("ok", "online")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("ok")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveTransition("x", "y")
	m.ObserveIgnored("x")
	m.ObserveBooking("ok", "other")
	m.ObserveCancellation("ok")
	m.ObserveLookup("ok")
}
