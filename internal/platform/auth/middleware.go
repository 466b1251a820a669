package auth

import (
	"net/http"
	"strings"

	"github.com/furever-shop/api/internal/platform/httpx"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"

	roleAdmin = "admin"
)

// Middleware reads the identity headers set by the gateway and stores the
// resulting Identity on the request context. Requests without the headers
// pass through anonymously; route guards decide what anonymity may do.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := strings.TrimSpace(r.Header.Get(headerUserID))
			if uid == "" {
				next.ServeHTTP(w, r)
				return
			}
			identity := Identity{
				UID:   uid,
				Admin: strings.EqualFold(strings.TrimSpace(r.Header.Get(headerUserRole)), roleAdmin),
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose identity is missing or not an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
			return
		}
		if !identity.Admin {
			httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "admin access required", http.StatusForbidden))
			return
		}
		next.ServeHTTP(w, r)
	})
}
