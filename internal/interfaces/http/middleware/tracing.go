package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing returns the otelgin middleware followed by span enrichment. When
// disabled it returns a pass-through handler.
//
// Spans carry request_id and, once the JWT middleware has run, user_id.
// 5xx responses mark the span as failed.
func Tracing(serviceName string, enabled bool) []gin.HandlerFunc {
	if !enabled {
		return []gin.HandlerFunc{func(c *gin.Context) { c.Next() }}
	}
	return []gin.HandlerFunc{
		otelgin.Middleware(serviceName),
		enrichSpan,
	}
}

func enrichSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}
	if id := c.GetString(RequestIDKey); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}

	c.Next()

	if uid := GetUserID(c); uid != "" {
		span.SetAttributes(attribute.String("user_id", uid))
	}
	if status := c.Writer.Status(); status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
