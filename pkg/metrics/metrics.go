package metrics

import (
	"time"

	"event-booking/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	inventoryOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_operations_total",
			Help: "Inventory operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	lockWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inventory_lock_wait_seconds",
			Help:    "Time spent waiting for per-ticket exclusivity",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"operation"},
	)

	bookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking lifecycle transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	paymentTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Payment transaction transitions by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	domainEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "domain_events_total",
			Help: "Domain events by type and delivery status",
		},
		[]string{"event_type", "status"},
	)

	eventQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "domain_event_queue_depth",
			Help: "Domain events waiting for a worker",
		},
	)
)

func TrackInventory(operation, outcome string) {
	inventoryOperations.WithLabelValues(operation, outcome).Inc()
}

func TrackLockWait(operation string, d time.Duration) {
	lockWait.WithLabelValues(operation).Observe(d.Seconds())
}

func TrackBooking(action, outcome string) {
	bookingTransitions.WithLabelValues(action, outcome).Inc()
}

func TrackPayment(action, outcome string) {
	paymentTransitions.WithLabelValues(action, outcome).Inc()
}

func TrackEvent(eventType, status string) {
	domainEvents.WithLabelValues(eventType, status).Inc()
}

func SetEventQueueDepth(n int) {
	eventQueueDepth.Set(float64(n))
}

// Outcome turns an operation result into a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperror.KindOf(err).String()
}
