package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Notification event names pushed to listening client sessions.
const (
	EventOrderStatusChanged = "order.status_changed"
	EventOrderPaid          = "order.paid"
	EventOrderCancelled     = "order.cancelled"
)

// Notification is a persisted per-user notification record.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Event     string
	Title     string
	Body      string
	Read      bool
	CreatedAt time.Time
}

// NotificationStore is the persistence collaborator for notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
}

// Notifier delivers events to any listening client session for a user.
// Delivery is fire-and-forget: failures are logged by implementations and
// never affect the caller's outcome.
type Notifier interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload any)
}
