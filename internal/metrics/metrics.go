// Package metrics holds the Prometheus collectors of the review service's
// domain: moderation activity and the email dispatcher.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
)

var (
	// ReviewsCreated counts reviews posted by readers.
	ReviewsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "folio_reviews_created_total",
			Help: "Total number of reviews created",
		},
	)

	// ModerationActions counts successful moderation actions by action
	// (edit, delete) and whether the edit window was bypassed.
	ModerationActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_moderation_actions_total",
			Help: "Total number of review moderation actions",
		},
		[]string{"action", "bypass"},
	)

	// ModerationRejections counts moderation attempts refused before any
	// mutation, by reason.
	ModerationRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_moderation_rejections_total",
			Help: "Total number of rejected moderation attempts",
		},
		[]string{"reason"},
	)

	// Appeals counts appeals by transition (filed, resolved, rejected).
	Appeals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_appeals_total",
			Help: "Total number of appeal transitions",
		},
		[]string{"status"},
	)

	// EmailDeliveries counts delivery outcomes: sent, retry, failed, and
	// deferred when the queue was full.
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folio_email_deliveries_total",
			Help: "Total number of email delivery attempts by outcome",
		},
		[]string{"outcome"},
	)

	// DispatchQueueDepth is the number of deliveries waiting for a worker.
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "folio_dispatch_queue_depth",
			Help: "Number of email deliveries waiting in the dispatch queue",
		},
	)

	// CircuitBreakerState mirrors the state of each named breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// BreakerStateValue maps gobreaker states to gauge values.
func BreakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BoolLabel renders a bool as a label value.
func BoolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
