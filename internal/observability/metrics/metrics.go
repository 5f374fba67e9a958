package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability and booking flows.
type BookingMetrics struct {
	transitionsTotal   *prometheus.CounterVec
	confirmationsTotal *prometheus.CounterVec
	slotLatency        *prometheus.HistogramVec
	slotCacheTotal     *prometheus.CounterVec
	remindersTotal     *prometheus.CounterVec
	outboxTotal        *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Negotiation mode transitions",
		}, []string{"from", "to"}),
		confirmationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "booking",
			Name:      "confirmations_total",
			Help:      "Appointment confirmation attempts by outcome",
		}, []string{"outcome"}),
		slotLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadcrm",
			Subsystem: "availability",
			Name:      "compute_seconds",
			Help:      "Latency of slot computation including config and busy lookups",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		slotCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "availability",
			Name:      "cache_total",
			Help:      "Slot cache lookups by result",
		}, []string{"result"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "reminders",
			Name:      "sent_total",
			Help:      "Appointment reminders by status",
		}, []string{"status"}),
		outboxTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadcrm",
			Subsystem: "events",
			Name:      "outbox_delivered_total",
			Help:      "Outbox deliveries by event type and status",
		}, []string{"event_type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.transitionsTotal, m.confirmationsTotal, m.slotLatency,
		m.slotCacheTotal, m.remindersTotal, m.outboxTotal)
	return m
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

// ObserveConfirmation records "created", "replayed", "slot_taken" or "error".
func (m *BookingMetrics) ObserveConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.confirmationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlotComputation(source string, seconds float64) {
	if m == nil {
		return
	}
	m.slotLatency.WithLabelValues(source).Observe(seconds)
}

func (m *BookingMetrics) ObserveSlotCache(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.slotCacheTotal.WithLabelValues(label).Inc()
}

func (m *BookingMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveOutboxDelivery(eventType, status string) {
	if m == nil {
		return
	}
	m.outboxTotal.WithLabelValues(eventType, status).Inc()
}
