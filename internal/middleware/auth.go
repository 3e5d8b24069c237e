// File: internal/middleware/auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/carebridge/carechat/internal/domain"
	"github.com/carebridge/carechat/internal/services"
)

type contextKey string

// PrincipalKey is the request-context key holding the authenticated principal.
const PrincipalKey contextKey = "principal"

// PrincipalFrom extracts the authenticated principal from a request context.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(domain.Principal)
	return p, ok
}

// NewAuthMiddleware validates the session credential on REST requests. The
// credential is taken from the Authorization bearer header, falling back to
// the auth_token cookie the web portal sets.
func NewAuthMiddleware(authService *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential := bearerToken(r)
			if credential == "" {
				if cookie, err := r.Cookie("auth_token"); err == nil {
					credential = cookie.Value
				}
			}

			principal, err := authService.Authenticate(r.Context(), credential)
			if err != nil {
				log.Printf("[AuthMiddleware] Rejected request to %s: %v", r.URL.Path, err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
