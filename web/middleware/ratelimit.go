package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/medreg/patient-registry/logger"
	"github.com/medreg/patient-registry/util/metrics"
	"github.com/medreg/patient-registry/web/cache"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig configures rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	KeyFunc           func(c *gin.Context) string
	// OnLimit writes the response for a rejected request.
	OnLimit func(c *gin.Context)
}

// DefaultRateLimitConfig limits by client IP and answers 429 with JSON.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
		OnLimit: func(c *gin.Context) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"msg":     "Rate limit exceeded. Please try again later.",
			})
		},
	}
}

// RateLimitMiddleware counts requests per key and path in fixed one-minute
// windows kept in Redis. When Redis is unavailable requests are let through.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	def := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = def.KeyFunc
	}
	if config.OnLimit == nil {
		config.OnLimit = def.OnLimit
	}
	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		rateLimitKey := "ratelimit:" + key + ":" + c.Request.URL.Path

		count, err := cache.Incr(c.Request.Context(), rateLimitKey, time.Minute)
		if err != nil {
			logger.Warning("Rate limit increment failed:", err)
			c.Next()
			return
		}

		remaining := config.RequestsPerMinute - int(count)
		c.Header("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerMinute))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))

		if remaining < 0 {
			logger.Warningf("Rate limit exceeded for %s on %s (count: %d)", key, c.Request.URL.Path, count)
			metrics.RateLimitHits.Inc()
			config.OnLimit(c)
			c.Abort()
			return
		}

		c.Next()
	}
}
