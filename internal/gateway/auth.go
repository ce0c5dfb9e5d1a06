package gateway

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// authMiddleware guards the admin routes. A request passes with a matching
// bearer token or basic pair; comparisons are constant-time.
func authMiddleware(cfg AuthConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reason := checkCredentials(cfg, r)
			if reason == "" {
				next.ServeHTTP(w, r)
				return
			}

			if logger != nil {
				logger.Warn("gateway: auth failure",
					"detail", reason,
					"remote_addr", r.RemoteAddr,
					"method", r.Method,
					"path", r.URL.Path,
				)
			}
			if cfg.BasicUser != "" {
				w.Header().Set("WWW-Authenticate", `Basic realm="ephemera admin"`)
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})
	}
}

// checkCredentials returns an empty string when r is authorized, otherwise
// the failure detail to log.
func checkCredentials(cfg AuthConfig, r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "missing authorization header"
	}
	if token, ok := strings.CutPrefix(header, "Bearer "); ok && cfg.BearerToken != "" {
		if equal(token, cfg.BearerToken) {
			return ""
		}
		return "invalid bearer token"
	}
	if user, pass, ok := r.BasicAuth(); ok && cfg.BasicUser != "" && cfg.BasicPass != "" {
		if equal(user, cfg.BasicUser) && equal(pass, cfg.BasicPass) {
			return ""
		}
		return "invalid basic credentials"
	}
	return "unsupported authorization scheme"
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
