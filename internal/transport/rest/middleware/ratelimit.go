package middleware

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"compclient/internal/cache"
)

// RateLimit rejects callers over the limiter's budget with 429 and Retry-After.
// Authenticated callers are keyed by user id, others by remote address.
func RateLimit(limiter cache.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = remoteHost(r)
			}

			allowed, reset, err := limiter.Allow(r.Context(), key)
			if err != nil {
				// fail open, the limiter is optional
				log.Printf("[RateLimit] WARNING: limiter unavailable: %v", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int((reset + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
