package middleware

import (
	"net/http"
	"strings"

	"github.com/Togather-Foundation/listsync/internal/config"
	"github.com/rs/zerolog"
)

// CORS handles Cross-Origin Resource Sharing for browser clients of the
// list API.
//
// Outside production every origin is echoed back. In production only the
// configured CORS_ALLOWED_ORIGINS match (case-insensitive, exact), and
// rejected origins are logged at warn level.
//
// Preflight OPTIONS requests are answered with 204 No Content.
func CORS(cfg config.CORSConfig, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Same-origin requests carry no Origin header
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowedOrigin := ""
			originRejected := false
			if cfg.AllowAllOrigins {
				allowedOrigin = origin
			} else {
				if isOriginAllowed(origin, cfg.AllowedOrigins) {
					allowedOrigin = origin
				} else {
					originRejected = true
				}
			}

			if originRejected {
				logger.Warn().
					Str("origin", origin).
					Str("path", r.URL.Path).
					Str("method", r.Method).
					Msg("CORS request rejected: origin not allowed")
			}

			if allowedOrigin != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, X-Request-ID")
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed checks if the given origin is in the allowed list.
// Performs case-insensitive exact match; "*" matches any origin.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	origin = strings.ToLower(strings.TrimSpace(origin))
	for _, allowed := range allowedOrigins {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
