package ratelimit

import (
	"net/http"

	"voicereport-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests beyond the per-client-IP cap with 429.
// A limiter backend error fails open: dropping webhooks on a Redis hiccup
// is worse than briefly overcounting.
func Middleware(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, err := l.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "err", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"success": false, "message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
