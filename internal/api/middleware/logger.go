package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	logx "ridewatch/pkg/logx"
)

// Logger emits one structured access line per request. 5xx log as warnings so
// they surface at the default level.
func Logger(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", path),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
			logx.String("ip", c.ClientIP()),
		}
		if c.Writer.Status() >= 500 {
			log.Warn("http request", fields...)
		} else {
			log.Debug("http request", fields...)
		}
	}
}
