package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"hw-inventory/internal/telemetry"
)

// Metrics records request counts and latencies by route template, so
// /hardware/1 and /hardware/2 share one series.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
