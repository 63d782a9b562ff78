package routes

import (
	"github.com/vantran/selene/internal/handler/api"
	"github.com/vantran/selene/internal/handler/webhook"
	"github.com/vantran/selene/internal/router"
)

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	MoMoHandler   *webhook.MoMoHandler
	StripeHandler *webhook.StripeHandler
}

// APIDeps contains dependencies for the order API routes
type APIDeps struct {
	OrderHandler *api.OrderHandler

	// RequireAuth / RequireAdmin gate the customer and admin surfaces.
	RequireAuth  router.Middleware
	RequireAdmin router.Middleware
}
