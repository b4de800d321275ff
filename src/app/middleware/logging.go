package middleware

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// maxLoggedBody caps how much of an error response body is logged.
const maxLoggedBody = 512

// Logging emits one structured line per request, leveled by status code.
// Error responses carry their body; request bodies are never logged.
func Logging(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if query := c.Request.URL.RawQuery; query != "" {
			path = path + "?" + query
		}

		rec := &responseCapture{ResponseWriter: c.Writer}
		c.Writer = rec

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if p := CurrentPrincipal(c); p != nil {
			attrs = append(attrs, "user_id", p.ID)
		}
		if status >= 400 {
			body := rec.body.Bytes()
			if len(body) > maxLoggedBody {
				body = body[:maxLoggedBody]
			}
			attrs = append(attrs, "response", string(body))
		}

		reqLog := RequestLogger(c, log)
		switch {
		case status >= 500:
			reqLog.Error("request failed", attrs...)
		case status >= 400:
			reqLog.Warn("request rejected", attrs...)
		default:
			reqLog.Info("request served", attrs...)
		}
	}
}

// responseCapture captures response body while delegating to original writer.
type responseCapture struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (r *responseCapture) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) WriteString(s string) (int, error) {
	r.body.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}
