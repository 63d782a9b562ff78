package domain

import (
	"context"

	"github.com/google/uuid"
)

// User-related domain errors.
var (
	ErrUserNotFound = &Error{Code: ENOTFOUND, Message: "User not found"}
)

// Account roles. Admins may manage any order; customers only their own.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is a registered account. Accounts are provisioned automatically the
// first time a verified external identity is seen.
type User struct {
	ID         uuid.UUID
	ExternalID string
	Email      string
	Name       string
	Role       string
}

// IsAdmin reports whether the user holds the elevated role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity is the verified caller of a request, as established by the
// auth middleware from a bearer credential.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Role   string
}

// IsAdmin reports whether the identity holds the elevated role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// UserStore is the persistence collaborator for users.
type UserStore interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// GetUserByEmail matches case-insensitively. Returns ErrUserNotFound
	// when no account exists for the address.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// UpsertUserByExternalID provisions an account on first sight of a
	// verified external identity, or returns the existing one.
	UpsertUserByExternalID(ctx context.Context, externalID, email, name string) (*User, error)
}
