package server

import (
	"time"

	"github.com/compozy/graphsync/pkg/logger"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs each request at debug level.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
