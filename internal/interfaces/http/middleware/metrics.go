package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
)

// Metrics records request count, latency and in-flight requests by route
// template. A nil metrics returns a pass-through handler.
func Metrics(m *telemetry.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		done := m.RequestStarted()
		c.Next()
		done(c.Request.Method, c.FullPath(), c.Writer.Status())
	}
}
