package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"interview-copilot/internal/common"
	"interview-copilot/internal/logger"
)

// Recovery converts panics into a 500 envelope instead of a dropped
// connection.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered",
					"panic", r,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(RequestIDHeader),
				)
				common.Fail(c, http.StatusInternalServerError, 50000, "Unexpected server error.")
				c.Abort()
			}
		}()
		c.Next()
	}
}
