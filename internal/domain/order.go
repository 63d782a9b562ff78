package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order-related domain errors.
var (
	ErrOrderNotFound       = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrInsufficientStock   = &Error{Code: ECONFLICT, Message: "Insufficient stock for one or more items"}
	ErrNotOrderOwner       = &Error{Code: EFORBIDDEN, Message: "You do not have access to this order"}
	ErrInvalidOrderStatus  = &Error{Code: EINVALID, Message: "Invalid order status"}
	ErrSignatureMismatch   = &Error{Code: EUNAUTHORIZED, Message: "Webhook signature verification failed"}
	ErrPaymentNotSucceeded = &Error{Code: EPAYMENT, Message: "Payment has not succeeded"}
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusReturned   OrderStatus = "RETURNED"
)

// OrderStatuses lists every valid status, in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusReturned,
}

// ParseOrderStatus validates a raw status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", Errorf(EINVALID, "order.status.parse", "invalid order status: %q", s)
}

// IsTerminal reports whether no further transition is permitted out of s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusReturned
}

// orderTransitions is the single source of truth for legal status edges.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned},
	OrderStatusCancelled:  {},
	OrderStatusReturned:   {},
}

// AllowedTransitions returns the legal next statuses for current.
func AllowedTransitions(current OrderStatus) []OrderStatus {
	return orderTransitions[current]
}

// CanTransition reports whether current may move to next.
// A no-op transition (current == next) is always allowed.
func CanTransition(current, next OrderStatus) bool {
	if current == next {
		return true
	}
	for _, allowed := range orderTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns nil if the transition is legal, or a
// descriptive error naming the invalid pair and the legal alternatives.
func ValidateTransition(current, next OrderStatus) error {
	if CanTransition(current, next) {
		return nil
	}
	allowed := orderTransitions[current]
	if len(allowed) == 0 {
		return Errorf(EINVALID, "order.transition",
			"cannot change status of a %s order: %s is a terminal status", current, current)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return Errorf(EINVALID, "order.transition",
		"cannot change order status from %s to %s (allowed: %s)",
		current, next, strings.Join(names, ", "))
}

// PaymentMethod identifies how an order is paid.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMoMo         PaymentMethod = "momo"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodQR           PaymentMethod = "qr"
)

// IsOnlineGateway reports whether the method collects payment through an
// external gateway before fulfillment. COD is settled on delivery.
func (m PaymentMethod) IsOnlineGateway() bool {
	return m != PaymentMethodCOD && m != ""
}

// Order is the aggregate root of the order lifecycle.
type Order struct {
	ID                   uuid.UUID     `json:"id"`
	OrderNumber          string        `json:"orderNumber"`
	Status               OrderStatus   `json:"status"`
	PaymentMethod        PaymentMethod `json:"paymentMethod"`
	IsPaid               bool          `json:"isPaid"`
	TransactionID        string        `json:"transactionId,omitempty"`
	InventoryDecremented bool          `json:"inventoryDecremented"`
	RefundRequired       bool          `json:"refundRequired"`
	UserID               *uuid.UUID    `json:"userId,omitempty"`
	Email                string        `json:"email"`
	TotalCents           int64         `json:"totalCents"`
	ShippingName         string        `json:"shippingName"`
	ShippingPhone        string        `json:"shippingPhone"`
	ShippingAddress      string        `json:"shippingAddress"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

// OwnedBy reports whether the given identity may act on this order.
// Ownership is either a direct user reference or a case-insensitive
// match on the order's denormalized e-mail (orders placed without an
// account carry only an e-mail).
func (o *Order) OwnedBy(ident Identity) bool {
	if o.UserID != nil && *o.UserID == ident.UserID {
		return true
	}
	return o.Email != "" && strings.EqualFold(o.Email, ident.Email)
}

// OrderItem is a line item with the unit price captured at order time.
type OrderItem struct {
	ID             uuid.UUID `json:"id"`
	OrderID        uuid.UUID `json:"orderId"`
	ProductID      uuid.UUID `json:"productId"`
	ProductName    string    `json:"productName"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unitPriceCents"`
}

// TransitionUpdates describes the field changes a validated transition
// implies beyond the status itself.
type TransitionUpdates struct {
	Status OrderStatus

	// MarkPaid is set when a COD order is delivered unpaid: delivery
	// settles the payment.
	MarkPaid bool

	// RefundRequired is set when an order already paid through an online
	// gateway is cancelled. Refund execution is external.
	RefundRequired bool
}

// ApplyTransition computes the side-effect policy for a validated
// transition. Callers must run ValidateTransition first; ApplyTransition
// never mutates the order.
func ApplyTransition(o *Order, next OrderStatus) TransitionUpdates {
	updates := TransitionUpdates{Status: next}

	switch next {
	case OrderStatusDelivered:
		if o.PaymentMethod == PaymentMethodCOD && !o.IsPaid {
			updates.MarkPaid = true
		}
	case OrderStatusCancelled:
		if o.IsPaid && o.PaymentMethod.IsOnlineGateway() {
			updates.RefundRequired = true
		}
	}

	return updates
}

// PaymentOutcome is a verified payment-provider notification, normalized
// from the gateway's wire format.
type PaymentOutcome struct {
	OrderID       uuid.UUID
	Succeeded     bool
	TransactionID string
	Provider      string
	Message       string
}

// InventoryFailure records one line item whose stock decrement failed.
type InventoryFailure struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int32     `json:"quantity"`
	Reason    string    `json:"reason"`
}

// InventoryResult summarizes an inventory reconciliation attempt.
// Failures are reported, never escalated: payment confirmation must not
// be blocked by a stock-accounting problem.
type InventoryResult struct {
	AlreadyProcessed bool               `json:"alreadyProcessed"`
	Decremented      int                `json:"decremented"`
	Failures         []InventoryFailure `json:"failures,omitempty"`
	Message          string             `json:"message"`
}

// OK reports whether every line item was decremented.
func (r *InventoryResult) OK() bool {
	return len(r.Failures) == 0
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status *OrderStatus
	IsPaid *bool
	Limit  int32
	Offset int32
}

// OrderUpdate is a field-level order mutation. Nil fields are untouched.
type OrderUpdate struct {
	Status         *OrderStatus
	IsPaid         *bool
	RefundRequired *bool
	TransactionID  *string
}

// OrderDetail aggregates an order with its line items.
type OrderDetail struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// OrderStore is the persistence collaborator for orders.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	ListOrdersForUser(ctx context.Context, userID uuid.UUID, email string) ([]Order, error)

	// UpdateOrder applies a field-level update and returns the updated row.
	UpdateOrder(ctx context.Context, id uuid.UUID, update OrderUpdate) (*Order, error)

	// LinkOrderUser attaches a user to an order that has none.
	LinkOrderUser(ctx context.Context, id, userID uuid.UUID) error

	// SetInventoryDecremented sets the idempotency flag. Once set it is
	// never cleared.
	SetInventoryDecremented(ctx context.Context, id uuid.UUID) error

	// DeleteOrder removes an order and its items (abandoned checkouts).
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	// DeleteOrdersBefore bulk-deletes orders in the given statuses updated
	// before cutoff. Returns the number of orders removed.
	DeleteOrdersBefore(ctx context.Context, statuses []OrderStatus, cutoff time.Time) (int64, error)

	// RepairTimestamps backfills legacy rows with null created_at or
	// updated_at. Returns the number of rows repaired.
	RepairTimestamps(ctx context.Context) (int64, error)
}

// OrderService provides the order lifecycle business logic.
type OrderService interface {
	// GetOrder returns an order with its line items.
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDetail, error)

	// ListOrders returns orders matching the filter (admin surface).
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)

	// ListOrdersForIdentity returns the caller's own orders, matched by
	// user reference or e-mail.
	ListOrdersForIdentity(ctx context.Context, ident Identity) ([]Order, error)

	// UpdateStatus performs an admin-initiated status transition, gated by
	// the transition table.
	UpdateStatus(ctx context.Context, id uuid.UUID, next OrderStatus) (*Order, error)

	// Cancel performs a caller-initiated cancellation, gated by ownership
	// and the transition table.
	Cancel(ctx context.Context, id uuid.UUID, ident Identity) (*Order, error)

	// ConfirmPayment reconciles local order state with a verified payment
	// outcome, exactly once per outcome. Safe against duplicate delivery.
	ConfirmPayment(ctx context.Context, outcome PaymentOutcome) error

	// ReconcileInventory decrements stock for an order's line items,
	// guarded by the idempotency flag.
	ReconcileInventory(ctx context.Context, orderID uuid.UUID) (*InventoryResult, error)

	// CleanupOrders bulk-deletes delivered and cancelled orders last
	// touched before the retention cutoff.
	CleanupOrders(ctx context.Context, olderThan time.Duration) (int64, error)
}

// OrderNumberPrefix is the human-facing order number prefix.
const OrderNumberPrefix = "ORD"

// FormatOrderNumber builds an order number like ORD-20250129-A3K9.
func FormatOrderNumber(t time.Time, suffix string) string {
	return fmt.Sprintf("%s-%s-%s", OrderNumberPrefix, t.Format("20060102"), suffix)
}
