package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vantran/selene/internal/domain"
)

const (
	// IdentityContextKey is the context key for storing the caller identity
	IdentityContextKey contextKey = "identity"
)

// WithIdentity extracts the caller identity from a bearer token and adds it
// to the request context. The account is provisioned on first sight of a
// verified token subject.
// This middleware is optional - unauthenticated requests pass through without
// an identity; use RequireAuth or RequireAdmin to enforce one.
func WithIdentity(secret string, users domain.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(raw, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, domain.Errorf(domain.EUNAUTHORIZED, "auth", "unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				// Invalid token, continue without identity
				GetLogger(r.Context()).Debug("token validation failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			sub, _ := claims["sub"].(string)
			email, _ := claims["email"].(string)
			name, _ := claims["name"].(string)
			if strings.TrimSpace(sub) == "" {
				next.ServeHTTP(w, r)
				return
			}

			// Provision or fetch the account for this subject. The role comes
			// from our records, never from the token.
			user, err := users.UpsertUserByExternalID(r.Context(), sub, email, name)
			if err != nil {
				GetLogger(r.Context()).Error("failed to provision user", "subject", sub, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			ident := &domain.Identity{
				UserID: user.ID,
				Email:  user.Email,
				Role:   user.Role,
			}

			ctx := context.WithValue(r.Context(), IdentityContextKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth ensures the request carries a valid identity, returning 401 if not
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			respondUnauthorized(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireAdmin ensures the caller is an admin, returning 401/403 as appropriate
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident := GetIdentity(r.Context())
		if ident == nil {
			respondUnauthorized(w, r)
			return
		}

		if !ident.IsAdmin() {
			respondForbidden(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetIdentity retrieves the caller identity from the request context
// Returns nil if the request is unauthenticated
func GetIdentity(ctx context.Context) *domain.Identity {
	ident, ok := ctx.Value(IdentityContextKey).(*domain.Identity)
	if !ok {
		return nil
	}
	return ident
}
