package handlers

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Avexra-AI/SAS-Chatbot/api/metrics"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// RateLimitError is the body of a 429 response.
type RateLimitError struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"` // seconds
}

// RateLimiter provides per-IP token buckets.
type RateLimiter struct {
	clock clockwork.Clock
	rate  rate.Limit
	burst int
	idle  time.Duration

	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing r requests per second per IP with
// the given burst. A nil clock means the real clock.
func NewRateLimiter(clock clockwork.Clock, r rate.Limit, burst int) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		clock:    clock,
		rate:     r,
		burst:    burst,
		idle:     5 * time.Minute,
		limiters: make(map[string]*rateLimiterEntry),
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	allowed, _ := rl.AllowWithRetry(ip)
	return allowed
}

// AllowWithRetry takes a token for ip if one is available, otherwise it
// reports how long until the next one.
func (rl *RateLimiter) AllowWithRetry(ip string) (allowed bool, retryAfter time.Duration) {
	now := rl.clock.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, time.Minute
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Sweep drops limiters not used within the idle window.
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.clock.Now().Add(-rl.idle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
			removed++
		}
	}
	return removed
}

// Run sweeps idle limiters until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := rl.clock.NewTicker(rl.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			rl.Sweep()
		}
	}
}

// RateLimitMiddleware rejects requests from IPs that are over their limit.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.AllowWithRetry(GetIPFromRequest(r))
			if !allowed {
				retrySeconds := max(int(retryAfter.Seconds()), 1)
				metrics.RateLimitedTotal.Inc()

				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds))
				writeJSON(w, http.StatusTooManyRequests, RateLimitError{
					Error:      "rate_limit_exceeded",
					Message:    "Too many requests. Please slow down.",
					RetryAfter: retrySeconds,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIPFromRequest returns the client IP. The router runs chi's RealIP
// middleware first, so RemoteAddr already reflects proxy headers.
func GetIPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
