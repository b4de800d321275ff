package middleware

import (
	"github.com/gin-gonic/gin"

	"tapround/src/app/http/response"
	"tapround/src/core/ports"
)

// RateLimit applies policy to operation per caller: the authenticated user
// id when present, the client IP otherwise.
func RateLimit(limiter ports.RateLimiter, operation string, policy ports.RateLimitPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := c.ClientIP()
		if p := CurrentPrincipal(c); p != nil {
			subject = p.ID.String()
		}

		if err := limiter.Allow(c.Request.Context(), operation, subject, policy); err != nil {
			response.FromDomainError(c, err, GetRequestID(c))
			c.Abort()
			return
		}
		c.Next()
	}
}
