// Package notify delivers push events to listening client sessions over
// NATS. Delivery is fire-and-forget: a dropped event is acceptable, a
// blocked order mutation is not.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/vantran/selene/internal/domain"
)

// SubjectPrefix is the NATS subject namespace for user notifications.
// Client sessions subscribe to notify.user.<user-id>.
const SubjectPrefix = "notify.user."

// NATSNotifier implements domain.Notifier over a NATS connection.
type NATSNotifier struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Compile-time check that NATSNotifier implements domain.Notifier.
var _ domain.Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier connects to the NATS server at url.
func NewNATSNotifier(url string, logger *slog.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("selene-notifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSNotifier{conn: conn, logger: logger}, nil
}

// Publish sends an event to the user's notification subject. Errors are
// logged and swallowed.
func (n *NATSNotifier) Publish(ctx context.Context, userID uuid.UUID, event string, payload any) {
	msg, err := json.Marshal(map[string]any{
		"event":   event,
		"payload": payload,
	})
	if err != nil {
		n.logger.Warn("failed to marshal notification", "event", event, "error", err)
		return
	}

	subject := SubjectPrefix + userID.String()
	if err := n.conn.Publish(subject, msg); err != nil {
		n.logger.Warn("failed to publish notification",
			"subject", subject, "event", event, "error", err)
	}
}

// Close drains the connection.
func (n *NATSNotifier) Close() {
	if err := n.conn.Drain(); err != nil {
		n.logger.Warn("failed to drain nats connection", "error", err)
	}
}

// NopNotifier discards all events. Used when no NATS server is configured.
type NopNotifier struct{}

var _ domain.Notifier = (*NopNotifier)(nil)

// Publish implements domain.Notifier.
func (NopNotifier) Publish(ctx context.Context, userID uuid.UUID, event string, payload any) {}
