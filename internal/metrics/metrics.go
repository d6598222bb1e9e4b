package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "court_reservation"

// Metrics holds the engine's collectors. A nil *Metrics records nothing.
type Metrics struct {
	bookings      *prometheus.CounterVec
	slotsCreated  prometheus.Counter
	conflicts     *prometheus.CounterVec
	rollbacks     *prometheus.CounterVec
	cancellations prometheus.Counter
	reschedules   prometheus.Counter
	bookDuration  prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		bookings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_requests_total",
			Help:      "Booking requests by outcome.",
		}, []string{"outcome"}),
		slotsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_created_total",
			Help:      "Reservation rows written by committed batches.",
		}),
		conflicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_conflicts_total",
			Help:      "Rejected candidate slots by conflict reason.",
		}, []string{"reason"}),
		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_rollbacks_total",
			Help:      "Compensating rollbacks by result.",
		}, []string{"result"}),
		cancellations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_cancelled_total",
			Help:      "Reservations cancelled by their holder.",
		}),
		reschedules: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_rescheduled_total",
			Help:      "Reservations moved to a new interval.",
		}),
		bookDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "booking_duration_seconds",
			Help:      "Time spent handling a booking request.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddSlotsCreated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.slotsCreated.Add(float64(n))
}

func (m *Metrics) IncConflict(reason string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRollback(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.rollbacks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCancellation() {
	if m == nil {
		return
	}
	m.cancellations.Inc()
}

func (m *Metrics) IncReschedule() {
	if m == nil {
		return
	}
	m.reschedules.Inc()
}

func (m *Metrics) ObserveBooking(since time.Time) {
	if m == nil {
		return
	}
	m.bookDuration.Observe(time.Since(since).Seconds())
}
