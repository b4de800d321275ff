package middleware

import (
	"log/slog"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"tapround/src/app/http/response"
)

// Recovery is a middleware that recovers from panics and returns a 500 error.
// It logs the panic with stack trace for debugging.
//
// This should be one of the first middleware in the chain to catch all panics.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				attrs := []any{
					"error", err,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"stack", string(debug.Stack()),
				}
				if p := CurrentPrincipal(c); p != nil {
					attrs = append(attrs, "user_id", p.ID)
				}
				RequestLogger(c, log).Error("panic recovered", attrs...)

				// Internal details stay in the log.
				response.InternalError(c, GetRequestID(c))
				c.Abort()
			}
		}()

		c.Next()
	}
}
