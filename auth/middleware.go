package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/warp/donor-crm/crm"
)

// SessionCookie is the cookie name browsers carry the token in.
const SessionCookie = "session"

type identityKey struct{}

// Resolver turns a raw token into an identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (crm.Identity, error)
}

// Middleware attaches the caller's identity to the request context. A bad
// or expired token leaves the request anonymous; any other resolve failure
// (the user lookup) ends the request with 500.
func Middleware(resolver Resolver, logger logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, ErrInvalidJWT) && !errors.Is(err, ErrExpiredJWT) {
					logger.WithError(err).Error("Failed to resolve session")
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{"error": "Internal server error"})
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// TokenFromRequest reads the bearer header, falling back to the cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id crm.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the identity in ctx, or crm.Anonymous.
func IdentityFrom(ctx context.Context) crm.Identity {
	if id, ok := ctx.Value(identityKey{}).(crm.Identity); ok {
		return id
	}
	return crm.Anonymous
}
