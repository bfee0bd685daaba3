package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	logx "ridewatch/pkg/logx"
)

// Recovery converts handler panics into 500s instead of dropping the
// connection.
func Recovery(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("handler panicked",
					logx.String("path", c.Request.URL.Path),
					logx.Any("panic", r),
					logx.String("stack", string(debug.Stack())))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
