package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/loanapp/internal/pkg/token"
)

// RequireToken guards the diagnostics endpoints with a bearer token signed by
// secret. The token may also arrive as ?access_token= for EventSource clients,
// which cannot set headers.
func RequireToken(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "token_middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				http.Error(w, "Unauthorized: token required", http.StatusUnauthorized)
				return
			}
			claims, err := token.Validate(raw, secret)
			if err != nil {
				logger.Warn("rejected diagnostics token", "error", err, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}
			logger.Debug("diagnostics access", "subject", claims.Subject, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, rest, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(rest)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
