package middleware

import (
	"net/http"

	"github.com/dom/scrimhub/pkg/ratelimit"
)

// RateLimit throttles per authenticated user, falling back to the
// remote address before auth ran.
func RateLimit(limiter ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.RemoteAddr
			if userID, ok := UserID(r.Context()); ok {
				key = userID.String()
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// Limiter backend down, let the request through.
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
