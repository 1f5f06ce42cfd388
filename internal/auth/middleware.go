// internal/auth/middleware.go
package auth

import (
	"context"
	"net/http"
	"strings"

	"libris/internal/apperr"
	"libris/internal/httpx"
	"libris/internal/membership"
)

type contextKey struct{}

// ActorFrom extracts the authenticated actor from the request context.
func ActorFrom(ctx context.Context) (membership.Actor, bool) {
	actor, ok := ctx.Value(contextKey{}).(membership.Actor)
	return actor, ok
}

// Middleware authenticates requests via the Authorization Bearer header and
// stores the resulting actor in the request context.
func Middleware(tokens *Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				httpx.Error(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
				return
			}

			claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				httpx.Error(w, err)
				return
			}

			actor, err := claims.Actor()
			if err != nil {
				httpx.Error(w, apperr.Wrap(apperr.KindUnauthorized, "invalid token subject", err))
				return
			}

			ctx := context.WithValue(r.Context(), contextKey{}, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose actor does not hold the elevated role.
// It must run after Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFrom(r.Context())
		if !ok {
			httpx.Error(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
			return
		}
		if !actor.IsAdmin() {
			httpx.Error(w, apperr.New(apperr.KindForbidden, "admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
