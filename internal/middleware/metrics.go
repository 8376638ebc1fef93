package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skybook/internal/monitoring"
)

// Metrics records request latency for each HTTP request against the route
// template, so path parameters do not explode label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		monitoring.ObserveAPILatency(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
