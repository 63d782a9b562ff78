package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/handler"
	"github.com/vantran/selene/internal/middleware"
	"github.com/vantran/selene/internal/telemetry"
)

// OrderHandler serves the order lifecycle API.
type OrderHandler struct {
	orders domain.OrderService
}

// NewOrderHandler creates a new order API handler
func NewOrderHandler(orders domain.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type orderResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Order   *domain.Order `json:"order,omitempty"`
}

type orderListResponse struct {
	Success bool           `json:"success"`
	Orders  []domain.Order `json:"orders"`
}

// GetOrder handles GET /api/orders/{id}.
// Customers may only see their own orders; admins may see any.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	id, err := parseOrderID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if !ident.IsAdmin() && !detail.Order.OwnedBy(*ident) {
		handler.ErrorResponse(w, r, domain.ErrNotOrderOwner)
		return
	}

	handler.RespondJSON(w, http.StatusOK, struct {
		Success bool                `json:"success"`
		Order   *domain.OrderDetail `json:"order"`
	}{Success: true, Order: detail})
}

// ListOrders handles GET /api/orders, returning the caller's own orders.
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	orders, err := h.orders.ListOrdersForIdentity(r.Context(), *ident)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, orderListResponse{Success: true, Orders: orders})
}

// Cancel handles POST /api/orders/{id}/cancel.
// Ownership is checked before order state, so a stranger probing another
// customer's order always sees 403 regardless of the order's status.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r.Context())
	if ident == nil {
		handler.UnauthorizedResponse(w, r)
		return
	}

	id, err := parseOrderID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), id, *ident)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		initiator := "customer"
		if ident.IsAdmin() {
			initiator = "admin"
		}
		telemetry.Business.OrdersCancelled.WithLabelValues(initiator).Inc()
	}

	handler.RespondJSON(w, http.StatusOK, orderResponse{
		Success: true,
		Message: "Order cancelled",
		Order:   order,
	})
}

// ListAdminOrders handles GET /api/admin/orders with optional filters.
func (h *OrderHandler) ListAdminOrders(w http.ResponseWriter, r *http.Request) {
	var filter domain.OrderFilter

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			handler.ErrorResponse(w, r, err)
			return
		}
		filter.Status = &status
	}
	if raw := r.URL.Query().Get("paid"); raw != "" {
		paid, err := strconv.ParseBool(raw)
		if err != nil {
			handler.ErrorResponse(w, r, domain.Invalid("order.list", "paid must be true or false"))
			return
		}
		filter.IsPaid = &paid
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || limit < 0 {
			handler.ErrorResponse(w, r, domain.Invalid("order.list", "limit must be a non-negative integer"))
			return
		}
		filter.Limit = int32(limit)
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || offset < 0 {
			handler.ErrorResponse(w, r, domain.Invalid("order.list", "offset must be a non-negative integer"))
			return
		}
		filter.Offset = int32(offset)
	}

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, orderListResponse{Success: true, Orders: orders})
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseOrderID(r)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handler.ErrorResponse(w, r, domain.Invalid("order.update", "invalid request body"))
		return
	}

	status, err := domain.ParseOrderStatus(body.Status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, status)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.RespondJSON(w, http.StatusOK, orderResponse{
		Success: true,
		Message: "Order status updated",
		Order:   order,
	})
}

// Cleanup handles DELETE /api/admin/orders/cleanup?days=N, bulk-deleting
// delivered and cancelled orders older than the retention window.
func (h *OrderHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			handler.ErrorResponse(w, r, domain.Invalid("order.cleanup", "days must be a positive integer"))
			return
		}
		days = parsed
	}

	deleted, err := h.orders.CleanupOrders(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if telemetry.Business != nil {
		telemetry.Business.OrdersDeleted.WithLabelValues("retention").Add(float64(deleted))
	}

	handler.RespondJSON(w, http.StatusOK, struct {
		Success bool  `json:"success"`
		Deleted int64 `json:"deleted"`
	}{Success: true, Deleted: deleted})
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.Invalid("order.get", "invalid order id")
	}
	return id, nil
}
