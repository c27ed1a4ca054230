package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking wizard and appointment lifecycle.
type BookingMetrics struct {
	transitions   *prometheus.CounterVec
	ignored       *prometheus.CounterVec
	bookings      *prometheus.CounterVec
	cancellations *prometheus.CounterVec
	lookups       *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Wizard events applied, by event and result kind",
		}, []string{"event", "result"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "ignored_selections_total",
			Help:      "Department or doctor selections that matched nothing",
		}, []string{"event"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "appointments_created_total",
			Help:      "Appointment submissions, by outcome and payment method",
		}, []string{"status", "payment_method"}),
		cancellations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"status"}),
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "booking",
			Name:      "lookups_total",
			Help:      "Appointment lookups by email, by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitions, m.ignored, m.bookings, m.cancellations, m.lookups)
	return m
}

func (m *BookingMetrics) ObserveTransition(event, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(event, result).Inc()
}

func (m *BookingMetrics) ObserveIgnored(event string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(event).Inc()
}

func (m *BookingMetrics) ObserveBooking(status, paymentMethod string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(status, paymentMethod).Inc()
}

func (m *BookingMetrics) ObserveCancellation(status string) {
	if m == nil {
		return
	}
	m.cancellations.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveLookup(status string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(status).Inc()
}
