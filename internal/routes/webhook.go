package routes

import (
	"github.com/vantran/selene/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
// These routes handle incoming notifications from payment gateways.
//
// Note: Webhook routes do NOT have authentication middleware.
// Each webhook handler verifies the request signature itself
// (HMAC for MoMo, Stripe-Signature for Stripe).
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/webhooks/momo", deps.MoMoHandler.HandleIPN)
	r.Get("/webhooks/momo", deps.MoMoHandler.HandleHealth)

	if deps.StripeHandler != nil {
		r.Post("/webhooks/stripe", deps.StripeHandler.HandleWebhook)
	}
}
