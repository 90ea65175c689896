package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/lendingdesk/internal/security"
	"github.com/yourorg/lendingdesk/internal/security/audit"
	"github.com/yourorg/lendingdesk/internal/security/auth"
	"github.com/yourorg/lendingdesk/internal/security/ratelimit"
)

type principalContextKey struct{}

// isAnonymousPath reports whether a path is reachable without a bearer token.
func isAnonymousPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics" ||
		path == "/api/login" || strings.HasPrefix(path, "/api/login/")
}

// JWTMiddleware validates the bearer token and installs the Principal in the
// request context. Anonymous paths pass through untouched.
func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAnonymousPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				// Websocket clients can't set headers from browsers; accept
				// the token as a query parameter on the feed path only.
				if strings.HasPrefix(r.URL.Path, "/ws/") {
					if token := r.URL.Query().Get("token"); token != "" {
						authHeader = "Bearer " + token
					}
				}
			}
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			principal := security.Principal{
				UserID:      claims.UserID,
				Username:    claims.Username,
				IsLibrarian: claims.IsLibrarian,
			}
			ctx := context.WithValue(r.Context(), principalContextKey{}, principal)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware applies the sliding-window limiter per authenticated
// user. Anonymous paths are not limited.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isAnonymousPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			p, _ := PrincipalFromContext(r.Context())
			if !limiter.Allow(p.UserID) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records mutating calls before they reach the handlers.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())

			switch {
			case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/create-user"):
				auditLog.LogAction(r.Context(), p.UserID, "create_user", "user", "", "initiated", "")
			case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/borrow"):
				auditLog.LogAction(r.Context(), p.UserID, "submit", "borrow_request", "", "initiated", "")
			case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/update-request/"):
				auditLog.LogAction(r.Context(), p.UserID, "decide", "borrow_request", r.PathValue("id"), "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (security.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(security.Principal)
	return p, ok
}
