package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"psychotest/utils"
)

// minIdleTTL bounds how long an unused bucket is kept.
const minIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter keeps one token bucket per caller. Buckets idle long enough
// to have refilled are dropped, since a fresh bucket behaves the same.
type UserRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewUserRateLimiter allows perMinute requests per caller with the given burst.
// A non-positive perMinute disables limiting.
func NewUserRateLimiter(perMinute float64, burst int) *UserRateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	idleTTL := minIdleTTL
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
		if refill := time.Duration(float64(burst) / perMinute * float64(time.Minute)); refill > idleTTL {
			idleTTL = refill
		}
	}
	return &UserRateLimiter{
		limiters:  map[string]*limiterEntry{},
		limit:     limit,
		burst:     burst,
		idleTTL:   idleTTL,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// allow takes a token from the caller's bucket and prunes idle buckets at most
// once per idle period.
func (l *UserRateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		for k, entry := range l.limiters {
			if now.Sub(entry.lastSeen) >= l.idleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// size reports how many buckets are tracked.
func (l *UserRateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware keys buckets by user id, or by client IP for anonymous callers.
func (l *UserRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claims, ok := CurrentClaims(c); ok {
			key = "user:" + strconv.FormatUint(uint64(claims.ID), 10)
		}
		if !l.allow(key) {
			c.Header("Retry-After", "60")
			utils.SendJSONError(c, http.StatusTooManyRequests, "Too many analysis requests. Please wait a minute and try again.", nil)
			return
		}
		c.Next()
	}
}
