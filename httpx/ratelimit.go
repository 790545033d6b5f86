package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/ncklrs/next-sanity-embedded-starter-sub001/log"
)

const (
	maxVisitors = 10000
	visitorTTL  = 3 * time.Minute
)

// RateLimiter keeps one token bucket per client IP. Idle buckets expire.
type RateLimiter struct {
	mu       sync.Mutex
	visitors *expirable.LRU[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		visitors: expirable.NewLRU[string, *rate.Limiter](maxVisitors, nil, visitorTTL),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow consumes a token for ip.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	limiter, ok := rl.visitors.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(rl.rps, rl.burst)
	}
	// re-adding refreshes the expiry
	rl.visitors.Add(ip, limiter)
	rl.mu.Unlock()

	return limiter.Allow()
}

// Middleware answers 429 once a client exceeds its rate. A nil or
// zero-rate limiter lets everything through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	if rl == nil || rl.rps <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(ClientIP(r)) {
			w.Header().Set("Retry-After", "1")
			LogJSON(w, r, http.StatusTooManyRequests, log.DebugLevel, "ratelimit.exceeded", http.StatusText(http.StatusTooManyRequests))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the host part of r.RemoteAddr. Behind a proxy, run
// middleware.RealIP first.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = strings.TrimSuffix(strings.TrimPrefix(r.RemoteAddr, "["), "]")
	}
	return ip
}
