package webhook

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/handler"
	"github.com/vantran/selene/internal/middleware"
	"github.com/vantran/selene/internal/payment"
	"github.com/vantran/selene/internal/telemetry"
)

// StripeHandler handles Stripe webhook events for card payments.
type StripeHandler struct {
	provider *payment.StripeProvider
	orders   domain.OrderService
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(provider *payment.StripeProvider, orders domain.OrderService) *StripeHandler {
	return &StripeHandler{
		provider: provider,
		orders:   orders,
	}
}

// HandleWebhook processes incoming Stripe webhook events.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := middleware.GetLogger(r.Context())

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues("stripe").Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues("stripe").Observe(time.Since(startTime).Seconds())
		}()
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook payload", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.stripe", "Error reading request body"))
		return
	}

	event, err := h.provider.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		// Unlike MoMo, Stripe documents 400 for signature failures and
		// manages its own retry schedule.
		logger.Warn("webhook signature verification failed", "error", err)
		h.failStripe("signature")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.stripe", "Invalid signature"))
		return
	}

	outcome, handled, err := h.provider.Outcome(event)
	if err != nil {
		logger.Warn("webhook carried unusable payment event", "event_type", event.Type, "error", err)
		h.failStripe("metadata")
		handler.RespondAck(w, "received")
		return
	}
	if !handled {
		logger.Debug("unhandled stripe event type", "event_type", event.Type)
		handler.RespondAck(w, "received")
		return
	}

	if err := h.orders.ConfirmPayment(r.Context(), outcome); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			logger.Warn("webhook for unknown order", "order_id", outcome.OrderID)
			h.failStripe("unknown_order")
			handler.RespondAck(w, "received")
			return
		}
		logger.Error("failed to apply payment outcome", "order_id", outcome.OrderID, "error", err)
		h.failStripe("internal")
		handler.RespondAck(w, "received")
		return
	}

	if telemetry.Business != nil {
		if outcome.Succeeded {
			telemetry.Business.WebhookProcessed.WithLabelValues("stripe", "success").Inc()
			telemetry.Business.PaymentSucceeded.WithLabelValues("stripe").Inc()
		} else {
			telemetry.Business.WebhookProcessed.WithLabelValues("stripe", "failure").Inc()
			telemetry.Business.PaymentFailed.WithLabelValues("stripe").Inc()
		}
	}

	handler.RespondAck(w, "received")
}

func (h *StripeHandler) failStripe(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues("stripe", reason).Inc()
	}
}
