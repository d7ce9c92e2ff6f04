package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/salonmirai/sitesync/pkg/metrics"
	"golang.org/x/time/rate"
)

// limiterStore holds one token bucket per caller key.
type limiterStore struct {
	m     sync.Map // map[string]*rate.Limiter
	rps   float64
	burst int
}

func (s *limiterStore) get(key string) *rate.Limiter {
	if v, ok := s.m.Load(key); ok {
		return v.(*rate.Limiter)
	}
	v, _ := s.m.LoadOrStore(key, rate.NewLimiter(rate.Limit(s.rps), s.burst))
	return v.(*rate.Limiter)
}

// limiterKey prefers the authenticated actor, then claims.sub, then the client IP.
func limiterKey(c *gin.Context) string {
	if actor := c.GetString("actor"); actor != "" {
		return "sub:" + actor
	}
	if v, ok := c.Get("claims"); ok {
		if cm, ok2 := v.(map[string]interface{}); ok2 {
			if sub, ok3 := cm["sub"].(string); ok3 && sub != "" {
				return "sub:" + sub
			}
		}
	}
	ip := c.ClientIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}

// RateLimitMiddleware returns a Gin middleware enforcing a token-bucket per-key limit.
// Each call gets its own bucket set, so the login route and the API can be limited separately.
// rps = allowed events per second, burst = maximum tokens in bucket.
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	store := &limiterStore{rps: rps, burst: burst}
	return func(c *gin.Context) {
		if !store.get(limiterKey(c)).Allow() {
			c.Header("Retry-After", "1")
			metrics.RateLimitRejected.WithLabelValues("memory").Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues("memory").Inc()
		c.Next()
	}
}
