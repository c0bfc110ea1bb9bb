package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		reconcileTotal,
		reconcileDuration,
		paymentTransitionsTotal,
	)
}

var (
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_events_total",
			Help: "Reconciled events by provider and outcome.",
		},
		[]string{"provider", "outcome"}, // transitioned, noop, malformed, not_found, duplicate, error
	)

	reconcileDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reconcile_duration_seconds",
			Help:    "Time spent reconciling one event, transaction included.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	paymentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_transitions_total",
			Help: "Applied payment status transitions, labeled by target status and source.",
		},
		[]string{"status", "source"},
	)
)

func IncReconcile(provider, outcome string) {
	reconcileTotal.WithLabelValues(norm(provider), norm(outcome)).Inc()
}

func ObserveReconcile(provider string, d time.Duration) {
	reconcileDuration.WithLabelValues(norm(provider)).Observe(d.Seconds())
}

func IncTransition(status, source string) {
	paymentTransitionsTotal.WithLabelValues(norm(status), norm(source)).Inc()
}

func AddTransitions(status, source string, n int) {
	if n <= 0 {
		return
	}
	paymentTransitionsTotal.WithLabelValues(norm(status), norm(source)).Add(float64(n))
}
