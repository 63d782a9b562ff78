package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for business-level observability
// of the order lifecycle.
type BusinessMetrics struct {
	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Payments
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec
	RevenueCollected *prometheus.CounterVec

	// Orders
	OrdersCancelled   *prometheus.CounterVec
	OrdersDeleted     *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec

	// Inventory
	InventoryDecrements       *prometheus.CounterVec
	InventoryDecrementFailed  *prometheus.CounterVec
}

// Business is the process-wide metrics instance. Nil until Init is called,
// so library code must nil-check before recording.
var Business *BusinessMetrics

// Init creates and registers the business metrics under the namespace.
func Init(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace)
	return Business
}

// NewBusinessMetrics creates and registers all business metrics.
func NewBusinessMetrics(namespace string) *BusinessMetrics {
	if namespace == "" {
		namespace = "selene"
	}

	subsystem := "business"

	return &BusinessMetrics{
		WebhookReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_received_total",
			Help:      "Payment webhooks received, by provider",
		}, []string{"provider"}),

		WebhookProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_processed_total",
			Help:      "Payment webhooks fully processed, by provider and outcome",
		}, []string{"provider", "outcome"}),

		WebhookFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_failed_total",
			Help:      "Payment webhooks that failed internally, by provider and reason",
		}, []string{"provider", "reason"}),

		WebhookLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "webhook_duration_seconds",
			Help:      "Webhook processing time, by provider",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),

		PaymentSucceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_succeeded_total",
			Help:      "Confirmed payments, by provider",
		}, []string{"provider"}),

		PaymentFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_failed_total",
			Help:      "Failed or cancelled payments, by provider",
		}, []string{"provider"}),

		RevenueCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "revenue_collected_cents_total",
			Help:      "Revenue collected in cents, by provider",
		}, []string{"provider"}),

		OrdersCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled, by initiator (user, admin, gateway)",
		}, []string{"initiator"}),

		OrdersDeleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orders_deleted_total",
			Help:      "Orders deleted, by reason (abandoned, cleanup)",
		}, []string{"reason"}),

		StatusTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "order_status_transitions_total",
			Help:      "Order status transitions, by from and to status",
		}, []string{"from", "to"}),

		InventoryDecrements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inventory_decrements_total",
			Help:      "Line items whose stock was decremented",
		}, []string{}),

		InventoryDecrementFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "inventory_decrement_failed_total",
			Help:      "Line items whose stock decrement failed",
		}, []string{}),
	}
}
