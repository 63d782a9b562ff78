// Package payment wraps the external payment gateways. Each gateway
// redirects the customer to a hosted payment page and later reports the
// outcome asynchronously via a signed webhook; this package owns the wire
// formats and signature verification, and normalizes outcomes into
// domain.PaymentOutcome for the order service.
package payment

import (
	"context"

	"github.com/google/uuid"
)

// Provider defines the interface for payment gateways.
type Provider interface {
	// Name identifies the gateway (e.g. "momo", "stripe").
	Name() string

	// CreatePayment initiates a hosted-page payment for an order and
	// returns the URL the customer is redirected to.
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentRequest, error)
}

// CreatePaymentParams contains parameters for initiating a payment.
type CreatePaymentParams struct {
	OrderID     uuid.UUID
	AmountCents int64

	// OrderInfo appears on the gateway's payment page.
	OrderInfo string

	// RedirectURL is where the customer lands after completing payment.
	RedirectURL string

	// NotifyURL is the webhook endpoint the gateway calls with the outcome.
	NotifyURL string
}

// PaymentRequest is a created hosted-page payment.
type PaymentRequest struct {
	// PayURL is the hosted payment page to redirect the customer to.
	PayURL string

	// RequestID is the gateway's reference for this payment attempt.
	RequestID string
}
