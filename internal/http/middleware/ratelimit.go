package middleware

import (
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/hotel-concierge-platform/internal/ratelimit"
)

// KeyFunc derives the rate limit bucket for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// KeyByIP buckets by client address. Run chi's RealIP first so proxies are honoured.
func KeyByIP(r *http.Request) string {
	ip := r.RemoteAddr
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		ip = xri
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

// KeyByURLParam buckets by a chi route parameter such as the session id.
func KeyByURLParam(name string) KeyFunc {
	return func(r *http.Request) string {
		return chi.URLParam(r, name)
	}
}

// RateLimit rejects requests that arrive faster than the gate allows for
// their key with 429 Too Many Requests.
func RateLimit(gate *ratelimit.Gate, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !gate.Allow(k) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
