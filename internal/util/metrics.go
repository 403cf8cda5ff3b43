package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_created_total",
		Help: "Total number of pending bookings created",
	})

	BookingsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_rejected_total",
		Help: "Total number of rejected booking requests",
	}, []string{"reason"})

	BookingsHeldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_held_total",
		Help: "Total number of bookings placed on hold by an advance payment",
	})

	BookingsConfirmedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookings_confirmed_total",
		Help: "Total number of bookings confirmed",
	})

	BookingsCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookings_cancelled_total",
		Help: "Total number of bookings cancelled",
	}, []string{"reason"})

	HoldsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "holds_expired_total",
		Help: "Total number of holds cancelled by the expiry sweeper",
	})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hold_sweep_duration_seconds",
		Help:    "Duration of hold-expiry sweep runs",
		Buckets: prometheus.DefBuckets,
	})

	ExtensionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extensions_created_total",
		Help: "Total number of booking extensions created",
	})

	ExtensionsAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "extensions_applied_total",
		Help: "Total number of extensions settled and applied to bookings",
	})

	PaymentsReconciledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_reconciled_total",
		Help: "Total number of payment reconciliations",
	}, []string{"outcome"})

	PaymentsReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_replayed_total",
		Help: "Total number of reconciliation calls on already-resolved payments",
	})

	QuotesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_total",
		Help: "Total number of price quotes computed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
