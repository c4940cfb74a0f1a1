package middlewares

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaymentRateLimiter throttles payment writes per user, on top of the per-IP limiter.
func PaymentRateLimiter(rps float64, burst int) gin.HandlerFunc {
	rl := NewRateLimiter(rps, burst)
	rl.keyFunc = func(c *gin.Context) string {
		return "user:" + strconv.FormatUint(uint64(CurrentUserID(c)), 10)
	}
	return rl.RateLimit()
}

// PaymentSecurityHeaders adds the headers payment endpoints send on top of SecurityHeaders.
func PaymentSecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}
