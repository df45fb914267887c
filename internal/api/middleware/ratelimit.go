package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/resreg/resreg/internal/api/response"
)

// RateLimiter applies a token-bucket limit per client. Clients are keyed by
// session cookie when present, falling back to remote address.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	cookieName string

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a RateLimiter allowing rps requests per second with
// the given burst per client.
func NewRateLimiter(rps, burst int, cookieName string) *RateLimiter {
	return &RateLimiter{
		limit:      rate.Limit(rps),
		burst:      burst,
		cookieName: cookieName,
		limiters:   make(map[string]*clientLimiter),
	}
}

// Handler is the middleware entry point.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.clientKey(r)

		if !rl.allow(key) {
			requestID := GetRequestID(r.Context())
			w.Header().Set("Retry-After", "1")
			response.Err(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", requestID)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	cl.lastSeen = time.Now()

	// Opportunistic cleanup; the map stays small under normal traffic.
	if len(rl.limiters) > 10000 {
		cutoff := time.Now().Add(-10 * time.Minute)
		for k, v := range rl.limiters {
			if v.lastSeen.Before(cutoff) {
				delete(rl.limiters, k)
			}
		}
	}

	return cl.limiter.Allow()
}

func (rl *RateLimiter) clientKey(r *http.Request) string {
	if c, err := r.Cookie(rl.cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.RemoteAddr
}
