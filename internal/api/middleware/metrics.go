package middleware

import (
	"time"

	"classroom-roster/internal/infrastructure/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics records request latency under the matched route pattern so ids
// in the path do not create new series.
func Metrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.Request(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
