// Package service implements the order lifecycle business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vantran/selene/internal/domain"
	"github.com/vantran/selene/internal/telemetry"
)

// OrderService implements domain.OrderService.
//
// Concurrency note: webhook deliveries for one order may arrive duplicated
// and out of order. No lock is taken; the paid-state and
// inventory_decremented guards are checked at the start of each invocation,
// accepting a narrow race window (payment events for a single order are
// rare and provider redelivery is spaced).
type OrderService struct {
	orders        domain.OrderStore
	products      domain.ProductStore
	users         domain.UserStore
	notifications domain.NotificationStore
	notifier      domain.Notifier
	logger        *slog.Logger
}

// Compile-time check that OrderService implements domain.OrderService.
var _ domain.OrderService = (*OrderService)(nil)

// NewOrderService creates a new order lifecycle service.
func NewOrderService(
	orders domain.OrderStore,
	products domain.ProductStore,
	users domain.UserStore,
	notifications domain.NotificationStore,
	notifier domain.Notifier,
	logger *slog.Logger,
) *OrderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{
		orders:        orders,
		products:      products,
		users:         users,
		notifications: notifications,
		notifier:      notifier,
		logger:        logger,
	}
}

// GetOrder returns an order with its line items.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.OrderDetail, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.GetOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &domain.OrderDetail{Order: *order, Items: items}, nil
}

// ListOrders returns orders matching the filter (admin surface).
func (s *OrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	return s.orders.ListOrders(ctx, filter)
}

// ListOrdersForIdentity returns the caller's own orders.
func (s *OrderService) ListOrdersForIdentity(ctx context.Context, ident domain.Identity) ([]domain.Order, error) {
	return s.orders.ListOrdersForUser(ctx, ident.UserID, ident.Email)
}

// UpdateStatus performs an admin-initiated status transition.
// The transition table is consulted before any write: an illegal pair is
// rejected with a descriptive error and nothing is mutated.
func (s *OrderService) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateTransition(order.Status, next); err != nil {
		return nil, err
	}
	if order.Status == next {
		// No-op transition; nothing to write.
		return order, nil
	}

	updated, err := s.applyTransition(ctx, order, next)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, domain.EventOrderStatusChanged,
		fmt.Sprintf("Order %s updated", updated.OrderNumber),
		fmt.Sprintf("Your order %s is now %s", updated.OrderNumber, updated.Status))

	return updated, nil
}

// Cancel performs a caller-initiated cancellation. The caller must own the
// order (by user reference or case-insensitive e-mail match) or hold the
// admin role, and the order must still be PENDING or PROCESSING.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, ident domain.Identity) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !ident.IsAdmin() && !order.OwnedBy(ident) {
		return nil, domain.ErrNotOrderOwner
	}

	if err := domain.ValidateTransition(order.Status, domain.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusCancelled {
		return order, nil
	}

	updated, err := s.applyTransition(ctx, order, domain.OrderStatusCancelled)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, updated, domain.EventOrderCancelled,
		fmt.Sprintf("Order %s cancelled", updated.OrderNumber),
		fmt.Sprintf("Your order %s has been cancelled", updated.OrderNumber))

	return updated, nil
}

// applyTransition computes the side-effect policy for a validated
// transition and persists it as a single field-level update.
func (s *OrderService) applyTransition(ctx context.Context, order *domain.Order, next domain.OrderStatus) (*domain.Order, error) {
	derived := domain.ApplyTransition(order, next)

	update := domain.OrderUpdate{Status: &derived.Status}
	if derived.MarkPaid {
		paid := true
		update.IsPaid = &paid
	}
	if derived.RefundRequired {
		refund := true
		update.RefundRequired = &refund
		s.logger.Info("order requires refund",
			"order_id", order.ID,
			"order_number", order.OrderNumber,
			"payment_method", order.PaymentMethod,
			"total_cents", order.TotalCents)
	}

	updated, err := s.orders.UpdateOrder(ctx, order.ID, update)
	if err != nil {
		return nil, err
	}

	if telemetry.Business != nil {
		telemetry.Business.StatusTransitions.WithLabelValues(string(order.Status), string(next)).Inc()
	}

	return updated, nil
}

// ConfirmPayment reconciles local order state with a verified payment
// outcome, exactly once. Re-delivery of the same notification is a no-op.
func (s *OrderService) ConfirmPayment(ctx context.Context, outcome domain.PaymentOutcome) error {
	order, err := s.orders.GetOrder(ctx, outcome.OrderID)
	if err != nil {
		return err
	}

	if !outcome.Succeeded {
		return s.handlePaymentFailure(ctx, order, outcome)
	}

	// Duplicate delivery of a success notification for an already-paid
	// order: no re-decrement, no re-link, no error.
	if order.IsPaid {
		s.logger.Info("payment already recorded, skipping",
			"order_id", order.ID, "provider", outcome.Provider, "transaction_id", outcome.TransactionID)
		return nil
	}

	paid := true
	update := domain.OrderUpdate{
		IsPaid:        &paid,
		TransactionID: &outcome.TransactionID,
	}
	// A paid order is never left PENDING; other statuses are kept, so an
	// out-of-order notification cannot move a shipped order backward.
	if order.Status == domain.OrderStatusPending {
		processing := domain.OrderStatusProcessing
		update.Status = &processing
	}

	updated, err := s.orders.UpdateOrder(ctx, order.ID, update)
	if err != nil {
		return err
	}

	// Best-effort linking of guest orders to a registered account by
	// e-mail. Failure never blocks payment confirmation.
	if updated.UserID == nil && updated.Email != "" {
		s.linkOrderToUser(ctx, updated)
	}

	// Inventory reconciliation is guarded by the idempotency flag; the
	// pre-payment snapshot carries the flag state checked here.
	result, err := s.reconcileInventory(ctx, order)
	if err != nil {
		s.logger.Error("inventory reconciliation failed",
			"order_id", order.ID, "error", err)
	} else if !result.AlreadyProcessed {
		if !result.OK() {
			s.logger.Warn("inventory reconciliation incomplete",
				"order_id", order.ID,
				"decremented", result.Decremented,
				"failures", len(result.Failures),
				"message", result.Message)
		} else {
			s.logger.Info("inventory decremented",
				"order_id", order.ID, "items", result.Decremented)
		}
	}

	s.notify(ctx, updated, domain.EventOrderPaid,
		fmt.Sprintf("Order %s paid", updated.OrderNumber),
		fmt.Sprintf("Payment for order %s was received via %s", updated.OrderNumber, outcome.Provider))

	return nil
}

// handlePaymentFailure processes a failed or cancelled payment outcome.
// An unpaid PENDING order is an abandoned checkout and is deleted outright;
// anything else is cancelled if the transition table allows it.
func (s *OrderService) handlePaymentFailure(ctx context.Context, order *domain.Order, outcome domain.PaymentOutcome) error {
	if !order.IsPaid && order.Status == domain.OrderStatusPending {
		s.logger.Info("deleting abandoned order after failed payment",
			"order_id", order.ID, "provider", outcome.Provider, "message", outcome.Message)
		return s.orders.DeleteOrder(ctx, order.ID)
	}

	if order.Status.IsTerminal() {
		// Nothing to do; terminal statuses never change.
		return nil
	}

	if !domain.CanTransition(order.Status, domain.OrderStatusCancelled) {
		s.logger.Warn("payment failure for order that cannot be cancelled",
			"order_id", order.ID, "status", order.Status)
		return nil
	}

	updated, err := s.applyTransition(ctx, order, domain.OrderStatusCancelled)
	if err != nil {
		return err
	}

	s.notify(ctx, updated, domain.EventOrderCancelled,
		fmt.Sprintf("Order %s cancelled", updated.OrderNumber),
		fmt.Sprintf("Payment for order %s failed: %s", updated.OrderNumber, outcome.Message))

	return nil
}

// linkOrderToUser attaches a guest order to the registered account whose
// e-mail matches. Best-effort: missing accounts and store errors are
// logged and ignored.
func (s *OrderService) linkOrderToUser(ctx context.Context, order *domain.Order) {
	user, err := s.users.GetUserByEmail(ctx, order.Email)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.Warn("user lookup for order linking failed",
				"order_id", order.ID, "error", err)
		}
		return
	}

	if err := s.orders.LinkOrderUser(ctx, order.ID, user.ID); err != nil {
		s.logger.Warn("failed to link order to user",
			"order_id", order.ID, "user_id", user.ID, "error", err)
		return
	}
	order.UserID = &user.ID
}

// ReconcileInventory decrements stock for an order's line items exactly
// once. Skips entirely when the idempotency flag is set or the order was
// already paid before this invocation (COD orders decrement at creation).
func (s *OrderService) ReconcileInventory(ctx context.Context, orderID uuid.UUID) (*domain.InventoryResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsPaid && !order.InventoryDecremented {
		// Paid before this invocation without a pending decrement: stock
		// was accounted for elsewhere.
		return &domain.InventoryResult{
			AlreadyProcessed: true,
			Message:          "order already paid; inventory not touched",
		}, nil
	}
	return s.reconcileInventory(ctx, order)
}

// reconcileInventory runs the decrement loop against a pre-loaded order
// snapshot. Partial failures are collected, never escalated, and the
// idempotency flag is set after any attempt that touched stock.
func (s *OrderService) reconcileInventory(ctx context.Context, order *domain.Order) (*domain.InventoryResult, error) {
	if order.InventoryDecremented {
		return &domain.InventoryResult{
			AlreadyProcessed: true,
			Message:          "inventory already decremented for this order",
		}, nil
	}

	items, err := s.orders.GetOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	result := &domain.InventoryResult{}
	for _, item := range items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			result.Failures = append(result.Failures, domain.InventoryFailure{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Reason:    domain.ErrorMessage(err),
			})
			s.logger.Warn("stock decrement failed",
				"order_id", order.ID, "product_id", item.ProductID,
				"quantity", item.Quantity, "error", err)
			if telemetry.Business != nil {
				telemetry.Business.InventoryDecrementFailed.WithLabelValues().Inc()
			}
			continue
		}
		result.Decremented++
		if telemetry.Business != nil {
			telemetry.Business.InventoryDecrements.WithLabelValues().Inc()
		}
	}

	// The flag is set even after partial failure: the failed items are in
	// the result for manual follow-up, and re-running the loop would
	// double-decrement the items that succeeded.
	if err := s.orders.SetInventoryDecremented(ctx, order.ID); err != nil {
		return nil, err
	}

	if result.OK() {
		result.Message = fmt.Sprintf("decremented stock for %d items", result.Decremented)
	} else {
		result.Message = fmt.Sprintf("decremented stock for %d of %d items; %d failed",
			result.Decremented, len(items), len(result.Failures))
	}
	return result, nil
}

// CleanupOrders bulk-deletes delivered and cancelled orders last touched
// before the retention cutoff. Other statuses are never eligible.
func (s *OrderService) CleanupOrders(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	return s.orders.DeleteOrdersBefore(ctx,
		[]domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled}, cutoff)
}

// notify records a notification and pushes it to the owner's sessions.
// Fire-and-forget: failures are logged, never returned.
func (s *OrderService) notify(ctx context.Context, order *domain.Order, event, title, body string) {
	if order.UserID == nil {
		return
	}

	if s.notifications != nil {
		n := &domain.Notification{
			UserID: *order.UserID,
			Event:  event,
			Title:  title,
			Body:   body,
		}
		if err := s.notifications.CreateNotification(ctx, n); err != nil {
			s.logger.Warn("failed to record notification",
				"order_id", order.ID, "event", event, "error", err)
		}
	}

	if s.notifier != nil {
		s.notifier.Publish(ctx, *order.UserID, event, map[string]any{
			"orderId":     order.ID.String(),
			"orderNumber": order.OrderNumber,
			"status":      order.Status,
			"title":       title,
			"body":        body,
		})
	}
}
