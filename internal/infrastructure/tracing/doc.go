/*
Package tracing wraps OpenTelemetry for the storage engine.

Every StorageRoot operation and every admin HTTP request gets a span. Without
an SDK provider installed the global tracer is a no-op; the daemon installs
NewProvider, which logs finished spans through zap.

# Usage

	tp := tracing.NewProvider("plugstore", logger)
	otel.SetTracerProvider(tp)
	tracer := tracing.New("plugstore")

	router.Use(tracing.HTTPMiddleware(tracer))

	ctx, span := tracer.StartSpan(ctx, "root.Put", attribute.String("node", id.Short()))
	err := doWork(ctx)
	tracing.Finish(span, err)

# Propagation

HTTPMiddleware extracts W3C traceparent headers and echoes the trace id in
X-Trace-ID.
*/
package tracing
