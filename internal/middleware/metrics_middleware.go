package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"guidedesk/pkg/metrics"
)

// MetricsMiddleware records each request under its route pattern, never the
// raw path.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
