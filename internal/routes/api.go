package routes

import (
	"github.com/vantran/selene/internal/router"
)

// RegisterAPIRoutes registers the customer and admin order API routes.
// Customer routes require an authenticated identity; admin routes
// additionally require the admin role.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Customer surface
	customer := r.Group(deps.RequireAuth)
	customer.Get("/api/orders", deps.OrderHandler.ListOrders)
	customer.Get("/api/orders/{id}", deps.OrderHandler.GetOrder)
	customer.Post("/api/orders/{id}/cancel", deps.OrderHandler.Cancel)

	// Admin surface
	admin := r.Group(deps.RequireAdmin)
	admin.Get("/api/admin/orders", deps.OrderHandler.ListAdminOrders)
	admin.Patch("/api/admin/orders/{id}/status", deps.OrderHandler.UpdateStatus)
	admin.Delete("/api/admin/orders/cleanup", deps.OrderHandler.Cleanup)
}
