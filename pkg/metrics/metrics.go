package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the domain counters.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Domain records the order, payment and inventory counters. A nil *Domain is
// valid and records nothing.
type Domain struct {
	ordersCreated *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	gatewayCalls  *prometheus.HistogramVec
}

// NewDomain registers the domain metrics on the provided registerer.
func NewDomain(reg prometheus.Registerer) *Domain {
	if reg == nil {
		return &Domain{}
	}
	d := &Domain{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders persisted, by payment method and initial status.",
		}, []string{"payment_method", "status"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_settlements_total",
			Help: "Order settlement transitions, by source, target status and outcome.",
		}, []string{"source", "status", "outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Gateway webhook deliveries, by event type and outcome.",
		}, []string{"event", "outcome"}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_reservations_total",
			Help: "Stock reserve and release attempts, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		gatewayCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "outcome"}),
	}
	reg.MustRegister(d.ordersCreated, d.settlements, d.webhookEvents, d.reservations, d.gatewayCalls)
	return d
}

// OrderCreated counts a persisted order.
func (d *Domain) OrderCreated(paymentMethod, status string) {
	if d == nil || d.ordersCreated == nil {
		return
	}
	d.ordersCreated.WithLabelValues(normalizeLabel(paymentMethod), normalizeLabel(status)).Inc()
}

// Settlement counts a settlement attempt from the verifier or the webhook.
func (d *Domain) Settlement(source, status, outcome string) {
	if d == nil || d.settlements == nil {
		return
	}
	d.settlements.WithLabelValues(normalizeLabel(source), normalizeLabel(status), normalizeLabel(outcome)).Inc()
}

// WebhookEvent counts a webhook delivery.
func (d *Domain) WebhookEvent(event, outcome string) {
	if d == nil || d.webhookEvents == nil {
		return
	}
	d.webhookEvents.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// Reservation counts a reserve/release attempt.
func (d *Domain) Reservation(operation, outcome string) {
	if d == nil || d.reservations == nil {
		return
	}
	d.reservations.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// ObserveGatewayCall records the latency of a gateway API call.
func (d *Domain) ObserveGatewayCall(operation, outcome string, seconds float64) {
	if d == nil || d.gatewayCalls == nil {
		return
	}
	d.gatewayCalls.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Observe(seconds)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
