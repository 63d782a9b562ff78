package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantran/selene/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// Compile-time check that UserStore implements domain.UserStore.
var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, external_id, email, name, role`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.Role); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser returns a single user by id.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "user.get", "failed to load user")
	}
	return user, nil
}

// GetUserByEmail matches case-insensitively.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, domain.Internal(err, "user.get_by_email", "failed to load user")
	}
	return user, nil
}

// UpsertUserByExternalID provisions an account on first sight of a
// verified external identity, or refreshes and returns the existing one.
func (s *UserStore) UpsertUserByExternalID(ctx context.Context, externalID, email, name string) (*domain.User, error) {
	user, err := scanUser(s.pool.QueryRow(ctx,
		`INSERT INTO users (external_id, email, name)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (external_id)
		 DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name, updated_at = now()
		 RETURNING `+userColumns, externalID, email, name))
	if err != nil {
		return nil, domain.Internal(err, "user.upsert", "failed to upsert user")
	}
	return user, nil
}
