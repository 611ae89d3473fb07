package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ledger writes, split by writer and whether the payment id was new
	paymentsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_payments_applied_total",
		Help: "Payment activations by writer and outcome",
	}, []string{
		"source",  // client, webhook
		"outcome", // applied, duplicate, failed
		"plan",
	})

	revenueMinorUnits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_revenue_minor_units_total",
		Help: "Amount of newly applied gateway payments in minor currency units",
	}, []string{"plan"})

	renewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_simulated_renewals_total",
		Help: "Simulated renewals granted without a gateway charge",
	}, []string{"plan"})

	expiriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_expiries_total",
		Help: "Subscriptions moved to expired",
	}, []string{
		"plan",
		"trigger", // launch, sweep
	})

	cancellationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_cancellations_total",
		Help: "Cancellation requests by outcome",
	}, []string{"outcome"}) // cancelled, already_cancelled, gateway_failed, rejected

	accessDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_access_decisions_total",
		Help: "Launch-time access decisions by resulting state",
	}, []string{"state"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_webhook_events_total",
		Help: "Inbound gateway webhook events by type and outcome",
	}, []string{
		"event_type",
		"outcome", // processed, duplicate, ignored, rejected, invalid_signature, failed
	})

	gatewayRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_gateway_requests_total",
		Help: "Outbound payment gateway calls by operation and outcome",
	}, []string{"operation", "outcome"})

	gatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "billing_gateway_request_duration_seconds",
		Help:    "Latency of outbound payment gateway calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"operation"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "billing_gateway_circuit_state",
		Help: "Gateway circuit breaker state (0 closed, 1 half-open, 2 open)",
	}, []string{"name"})

	eventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_events_published_total",
		Help: "Subscription lifecycle events handed to the event bus",
	}, []string{"event_type", "outcome"})
)

// RecordPaymentActivation records one write attempt of a confirmed payment
func RecordPaymentActivation(source, plan, outcome string, amount int64) {
	paymentsAppliedTotal.WithLabelValues(source, outcome, plan).Inc()
	if outcome == "applied" && amount > 0 {
		revenueMinorUnits.WithLabelValues(plan).Add(float64(amount))
	}
}

// RecordRenewal records a simulated renewal
func RecordRenewal(plan string) {
	renewalsTotal.WithLabelValues(plan).Inc()
}

// RecordExpiry records a subscription moving to expired
func RecordExpiry(plan, trigger string) {
	expiriesTotal.WithLabelValues(plan, trigger).Inc()
}

// RecordCancellation records the outcome of a cancel request
func RecordCancellation(outcome string) {
	cancellationsTotal.WithLabelValues(outcome).Inc()
}

// RecordAccessDecision records a launch-time access decision
func RecordAccessDecision(state string) {
	accessDecisionsTotal.WithLabelValues(state).Inc()
}

// RecordWebhookEvent records how an inbound webhook was handled
func RecordWebhookEvent(eventType, outcome string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordGatewayRequest records an outbound gateway call
func RecordGatewayRequest(operation, outcome string, seconds float64) {
	gatewayRequestsTotal.WithLabelValues(operation, outcome).Inc()
	gatewayRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordCircuitBreakerState records a breaker transition
func RecordCircuitBreakerState(name string, state int) {
	circuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordEventPublished records a lifecycle event publish attempt
func RecordEventPublished(eventType, outcome string) {
	eventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}
