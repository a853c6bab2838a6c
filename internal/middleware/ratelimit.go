package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// bucket is a per-client token bucket.
type bucket struct {
	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
}

// take refills the bucket for elapsed time and attempts to consume a token.
func (b *bucket) take(rate float64, burst int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if b.tokens > float64(burst) {
		b.tokens = float64(burst)
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// RateLimiter limits requests per client IP using a token bucket: rate
// tokens per second with the given burst capacity. Health endpoints are
// exempt so probes are never throttled.
func RateLimiter(rate float64, burst int) func(http.Handler) http.Handler {
	var buckets sync.Map // IP -> *bucket

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/v1/health" {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			val, _ := buckets.LoadOrStore(ip, &bucket{
				tokens:     float64(burst),
				lastRefill: time.Now(),
			})

			if !val.(*bucket).take(rate, burst) {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address, preferring X-Forwarded-For when a
// proxy set it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
