package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/dsyorkd/fleet-controller/internal/logger"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSec  float64
	Burst           int
	CleanupInterval time.Duration
	WhitelistedIPs  []string
}

// DefaultRateLimitConfig returns default rate limiting configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSec:  20,
		Burst:           40,
		CleanupInterval: 5 * time.Minute,
		WhitelistedIPs:  []string{"127.0.0.1", "::1"},
	}
}

// RateLimiter manages per-client token buckets
type RateLimiter struct {
	config    *RateLimitConfig
	log       logger.Interface
	limiters  map[string]*rate.Limiter
	mutex     sync.Mutex
	lastClean time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig, log logger.Interface) *RateLimiter {
	if config == nil {
		config = DefaultRateLimitConfig()
	}

	rl := &RateLimiter{
		config:    config,
		log:       log.WithField("component", "ratelimit"),
		limiters:  make(map[string]*rate.Limiter),
		lastClean: time.Now(),
	}

	rl.log.WithFields(map[string]interface{}{
		"requests_per_sec": config.RequestsPerSec,
		"burst":            config.Burst,
	}).Info("Rate limiter initialized")

	return rl
}

// RateLimit returns a rate limiting middleware keyed by user when
// authenticated, falling back to client IP
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.isWhitelisted(c.ClientIP()) {
			c.Next()
			return
		}

		clientID := rl.clientID(c)
		limiter := rl.getLimiter(clientID)

		if !limiter.Allow() {
			rl.log.WithFields(map[string]interface{}{
				"client_id": clientID,
				"method":    c.Request.Method,
				"path":      c.Request.URL.Path,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate Limit Exceeded",
				"message": "Too many requests, please slow down",
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%.0f", rl.config.RequestsPerSec))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int(limiter.Tokens())))
		c.Next()
	}
}

func (rl *RateLimiter) clientID(c *gin.Context) string {
	if userID := GetUserID(c); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.ClientIP()
}

func (rl *RateLimiter) getLimiter(clientID string) *rate.Limiter {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if time.Since(rl.lastClean) > rl.config.CleanupInterval {
		rl.limiters = make(map[string]*rate.Limiter)
		rl.lastClean = time.Now()
	}

	if limiter, exists := rl.limiters[clientID]; exists {
		return limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSec), rl.config.Burst)
	rl.limiters[clientID] = limiter
	return limiter
}

func (rl *RateLimiter) isWhitelisted(ip string) bool {
	for _, allowed := range rl.config.WhitelistedIPs {
		if ip == allowed {
			return true
		}
	}
	return false
}
