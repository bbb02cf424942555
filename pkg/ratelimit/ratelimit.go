// Package ratelimit throttles producer traffic per client key using
// token buckets. Chatty or misbehaving producers get 429s instead of
// degrading ingestion for everyone else.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key.
type Limiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst per key.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *Limiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[key] = lim
	}
	return lim
}

// Allow reports whether a request under key may proceed.
func (l *Limiter) Allow(key string) bool {
	return l.limiter(key).Allow()
}

// Middleware throttles requests keyed by keyFunc.
func (l *Limiter) Middleware(keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(keyFunc(r)) {
				http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPKeyFunc keys requests by client IP, honoring X-Forwarded-For when a
// proxy sits in front of the server.
func IPKeyFunc(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
