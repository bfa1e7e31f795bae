package server

import (
	"net/http"
	"sync"
	"time"

	"studioslot/internal/api"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per caller IP. Buckets for idle
// callers are dropped after idleTTL so the map stays bounded.
type RateLimiter struct {
	mu      sync.Mutex
	callers map[string]*caller
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
}

type caller struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(rps float64, burst int, idleTTL time.Duration) *RateLimiter {
	rl := &RateLimiter{
		callers: make(map[string]*caller),
		rate:    rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
	}

	go rl.evictIdle()

	return rl
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		for ip, c := range rl.callers {
			if time.Since(c.lastSeen) > rl.idleTTL {
				delete(rl.callers, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	c, ok := rl.callers[ip]
	if !ok {
		c = &caller{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.callers[ip] = c
	}
	c.lastSeen = time.Now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// RateLimitMiddleware rejects callers exceeding rps with 429. Booking
// traffic spikes when popular sessions open, so burst should sit well
// above rps.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	limiter := NewRateLimiter(rps, burst, 5*time.Minute)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, api.ErrorResponse{Error: "rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
