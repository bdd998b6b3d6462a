package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/logger"
)

// RequestLogger logs one line per request after the handler chain finishes.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"cost", time.Since(start),
			"request_id", c.GetString(RequestIDHeader),
		)
	}
}
