package middleware

import (
	"net/http"
	"strconv"

	"marketpulse/internal/redis"
	"marketpulse/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// WebhookRateLimitMiddleware throttles the public callback endpoint per
// source IP. Fail-open on limiter errors: a Redis hiccup must not drop
// legitimate runner callbacks.
func WebhookRateLimitMiddleware(limiter *redis.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowWebhook(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
