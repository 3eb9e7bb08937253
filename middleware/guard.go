package middleware

import (
	"context"
	"net/http"

	authkit "github.com/readshelf/authkit"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the authenticated caller placed by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*authkit.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*authkit.Claims)
	return claims, ok
}

// RequireAuth rejects requests without a valid access token and injects
// the verified claims into the request context. The token is read from the
// Authorization bearer header or the access cookie.
func RequireAuth(engine *authkit.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token := engine.AccessTokenFromRequest(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.Authenticate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole is RequireAuth plus a role check. A valid token with the
// wrong role gets 403, not 401.
func RequireRole(engine *authkit.Engine, role authkit.Role) func(http.Handler) http.Handler {
	requireAuth := RequireAuth(engine)
	return func(next http.Handler) http.Handler {
		return requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok || claims.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
