package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing. Incoming W3C
// traceparent headers are honored and the trace id is echoed back in
// X-Trace-ID.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := tracer.propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := tracer.StartSpan(ctx, c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.host", c.Request.Host),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		if traceID := GetTraceID(ctx); traceID != "" {
			c.Header("X-Trace-ID", traceID)
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.String("http.status_code", strconv.Itoa(status)))
		if len(c.Errors) > 0 {
			span.RecordError(c.Errors.Last())
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
