package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/vantran/selene/internal/domain"
)

// StripeProvider implements Provider for the card gateway.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider creates a Stripe card gateway provider.
func NewStripeProvider(apiKey, webhookSecret string) (*StripeProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe: api key is required")
	}
	stripe.Key = apiKey
	return &StripeProvider{webhookSecret: webhookSecret}, nil
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return "stripe" }

// CreatePayment implements Provider. Card payments use a payment intent
// whose client secret drives the hosted payment element.
func (p *StripeProvider) CreatePayment(ctx context.Context, params CreatePaymentParams) (*PaymentRequest, error) {
	pi, err := paymentintent.New(&stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Metadata: map[string]string{"order_id": params.OrderID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &PaymentRequest{PayURL: params.RedirectURL, RequestID: pi.ID}, nil
}

// VerifyWebhook verifies the Stripe-Signature header over the raw payload
// and parses the event. The signed-payload scheme replaces the field-level
// HMAC used by wallet gateways.
func (p *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, p.webhookSecret)
	if err != nil {
		return stripe.Event{}, domain.ErrSignatureMismatch
	}
	return event, nil
}

// Outcome normalizes a payment-intent event into a domain payment outcome.
// The second return is false for event types the order core does not act on.
func (p *StripeProvider) Outcome(event stripe.Event) (domain.PaymentOutcome, bool, error) {
	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed", "payment_intent.canceled":
		succeeded = false
	default:
		return domain.PaymentOutcome{}, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return domain.PaymentOutcome{}, false, fmt.Errorf("stripe: parse payment intent: %w", err)
	}

	rawOrderID := pi.Metadata["order_id"]
	orderID, err := uuid.Parse(rawOrderID)
	if err != nil {
		return domain.PaymentOutcome{}, false, fmt.Errorf("stripe: invalid order_id metadata %q: %w", rawOrderID, err)
	}

	return domain.PaymentOutcome{
		OrderID:       orderID,
		Succeeded:     succeeded,
		TransactionID: pi.ID,
		Provider:      "stripe",
		Message:       string(event.Type),
	}, true, nil
}
