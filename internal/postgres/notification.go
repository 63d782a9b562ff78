package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantran/selene/internal/domain"
)

// NotificationStore implements domain.NotificationStore using PostgreSQL.
type NotificationStore struct {
	pool *pgxpool.Pool
}

var _ domain.NotificationStore = (*NotificationStore)(nil)

// NewNotificationStore creates a new PostgreSQL-backed notification store.
func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

// CreateNotification persists a per-user notification record.
func (s *NotificationStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, event, title, body)
		 VALUES ($1, $2, $3, $4, $5)`,
		n.ID, n.UserID, n.Event, n.Title, n.Body)
	if err != nil {
		return domain.Internal(err, "notification.create", "failed to insert notification")
	}
	return nil
}
