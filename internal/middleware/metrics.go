package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/childlang-lab/cdi-api/internal/service"
)

// Metrics records per-route request counts and latency. The route
// template keeps label cardinality bounded; unmatched paths fall back to
// the raw URL.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
