package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/haneul-labs/keyshare/internal/api/service"
	"github.com/haneul-labs/keyshare/pkg/httpx"
)

const sessionCookie = "access_token"

// bearerToken extracts the session token from the request. The Authorization
// header takes precedence; the access_token cookie is the browser fallback
// and carries the same "Bearer "-prefixed value.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		if strings.HasPrefix(c.Value, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(c.Value, "Bearer "))
		}
	}
	return ""
}

// SessionMiddleware authenticates the request and injects the caller's
// identity into the context. Invalid or expired tokens yield 401, a valid
// token for a deactivated account yields 403.
func SessionMiddleware(identity *service.IdentityService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeUnauthenticated(w)
				return
			}

			user, _, err := identity.ResolveSession(r.Context(), raw)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrAccountInactive):
					httpx.WriteError(w, http.StatusForbidden, "account_inactive", "Account is not active")
				case errors.Is(err, service.ErrTokenExpired):
					httpx.WriteError(w, http.StatusUnauthorized, "token_expired", "Session has expired")
				default:
					writeUnauthenticated(w)
				}
				return
			}

			ctx := httpx.ContextWithUser(r.Context(), user.ID, user.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
