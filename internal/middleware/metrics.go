package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/service"
)

// Metrics records request duration and status per route template. Probe
// and scrape routes are skipped.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		switch path {
		case "/metrics", "/health", "/ready":
			return
		case "":
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
