package middleware

import (
	"net/http"
)

// DefaultMaxBodySize is 1MB. List and item bodies are a few hundred bytes.
const DefaultMaxBodySize int64 = 1 << 20

// RequestSize limits the size of incoming request bodies.
//
// It wraps the request body with http.MaxBytesReader; handlers that read
// past the limit get an *http.MaxBytesError, which they report as 413
// Payload Too Large. A non-positive maxBytes uses DefaultMaxBodySize.
func RequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
