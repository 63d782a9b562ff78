package webhook

import (
	"encoding/json"
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

// MoMoHandler handles MoMo instant payment notifications (IPN).
type MoMoHandler struct {
	provider *payment.MoMoProvider
	orders   domain.OrderService
}

// NewMoMoHandler creates a new MoMo webhook handler
func NewMoMoHandler(provider *payment.MoMoProvider, orders domain.OrderService) *MoMoHandler {
	return &MoMoHandler{
		provider: provider,
		orders:   orders,
	}
}

// HandleIPN processes incoming MoMo payment notifications.
//
// The gateway retries delivery on any non-2xx response, so every branch
// acknowledges with 200 once the request body has been read. Unverifiable
// or unprocessable notifications are logged and dropped, never retried.
func (h *MoMoHandler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	logger := middleware.GetLogger(r.Context())

	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues("momo").Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues("momo").Observe(time.Since(startTime).Seconds())
		}()
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook payload", "error", err)
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.momo", "Error reading request body"))
		return
	}

	var ipn payment.MoMoIPN
	if err := json.Unmarshal(payload, &ipn); err != nil {
		logger.Warn("malformed webhook payload", "error", err, "size", len(payload))
		h.fail("malformed")
		handler.RespondAck(w, "received")
		return
	}

	// Reject forged notifications before touching any order state.
	if err := h.provider.VerifyIPN(&ipn); err != nil {
		logger.Warn("webhook signature verification failed",
			"order_id", ipn.OrderID,
			"request_id", ipn.RequestID,
		)
		h.fail("signature")
		handler.RespondAck(w, "received")
		return
	}

	logger.Info("momo notification verified",
		"order_id", ipn.OrderID,
		"trans_id", ipn.TransID,
		"result_code", ipn.ResultCode,
		"amount", ipn.Amount,
	)

	outcome, err := ipn.Outcome()
	if err != nil {
		logger.Warn("webhook carried unusable order id", "order_id", ipn.OrderID, "error", err)
		h.fail("order_id")
		handler.RespondAck(w, "received")
		return
	}

	if err := h.orders.ConfirmPayment(r.Context(), outcome); err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			// Stale or foreign notification. Acknowledge so the gateway
			// stops retrying a delivery we can never use.
			logger.Warn("webhook for unknown order", "order_id", ipn.OrderID)
			h.fail("unknown_order")
			handler.RespondAck(w, "received")
			return
		}
		logger.Error("failed to apply payment outcome", "order_id", ipn.OrderID, "error", err)
		h.fail("internal")
		handler.RespondAck(w, "received")
		return
	}

	if telemetry.Business != nil {
		if outcome.Succeeded {
			telemetry.Business.WebhookProcessed.WithLabelValues("momo", "success").Inc()
			telemetry.Business.PaymentSucceeded.WithLabelValues("momo").Inc()
			telemetry.Business.RevenueCollected.WithLabelValues("momo").Add(float64(ipn.Amount))
		} else {
			telemetry.Business.WebhookProcessed.WithLabelValues("momo", "failure").Inc()
			telemetry.Business.PaymentFailed.WithLabelValues("momo").Inc()
		}
	}

	handler.RespondAck(w, "received")
}

// HandleHealth answers gateway reachability probes against the IPN URL.
func (h *MoMoHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	handler.RespondAck(w, "momo webhook endpoint ready")
}

func (h *MoMoHandler) fail(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues("momo", reason).Inc()
	}
}
