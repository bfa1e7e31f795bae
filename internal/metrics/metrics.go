package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studioslot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_bookings_total",
			Help: "Total number of bookings created",
		},
		[]string{"source"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studioslot_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	BookingRebooksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studioslot_booking_rebooks_total",
			Help: "Total number of rebooked bookings",
		},
	)

	WaitlistJoinsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "studioslot_waitlist_joins_total",
			Help: "Total number of waitlist joins",
		},
	)

	WaitlistPromotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_waitlist_promotions_total",
			Help: "Total number of waitlist promotions",
		},
		[]string{"outcome"},
	)

	FixedPlanPurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_fixed_plan_purchases_total",
			Help: "Total number of fixed plan purchases",
		},
		[]string{"outcome"},
	)

	TicketsVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_tickets_verified_total",
			Help: "Total number of ticket verifications",
		},
		[]string{"result"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studioslot_events_published_total",
			Help: "Total number of booking events pushed to the reporting queue",
		},
		[]string{"status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(source string) {
	BookingsTotal.WithLabelValues(source).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordBookingRebook() {
	BookingRebooksTotal.Inc()
}

func RecordWaitlistJoin() {
	WaitlistJoinsTotal.Inc()
}

func RecordWaitlistPromotion(outcome string) {
	WaitlistPromotionsTotal.WithLabelValues(outcome).Inc()
}

func RecordFixedPlanPurchase(outcome string) {
	FixedPlanPurchasesTotal.WithLabelValues(outcome).Inc()
}

func RecordTicketVerification(result string) {
	TicketsVerifiedTotal.WithLabelValues(result).Inc()
}

func RecordEventPublished(status string) {
	EventsPublishedTotal.WithLabelValues(status).Inc()
}
