package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/GriffinCanCode/plugstore"

// Tracer starts spans for storage operations
type Tracer struct {
	service    string
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// Option configures a Tracer
type Option func(*Tracer)

// WithProvider uses tp instead of the global tracer provider
func WithProvider(tp trace.TracerProvider) Option {
	return func(t *Tracer) {
		t.tracer = tp.Tracer(instrumentationName)
	}
}

// New creates a tracer. Without WithProvider it uses the global provider,
// which is a no-op until one is installed.
func New(service string, opts ...Option) *Tracer {
	t := &Tracer{
		service:    service,
		tracer:     otel.Tracer(instrumentationName),
		propagator: propagation.TraceContext{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Noop returns a tracer that records nothing
func Noop() *Tracer {
	return New("noop", WithProvider(noop.NewTracerProvider()))
}

// StartSpan starts a span named name as a child of any span in ctx.
// A nil tracer returns a non-recording span.
func (t *Tracer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Finish ends span, marking it failed when err is non-nil
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GetTraceID returns the hex trace id of the span in ctx, or ""
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// NewProvider builds an SDK tracer provider for service. Finished spans are
// written to logger at debug level.
func NewProvider(service string, logger *zap.Logger) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(semconv.ServiceNameKey.String(service))
	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(&logProcessor{logger: logger}),
	)
}

// logProcessor logs every finished span
type logProcessor struct {
	logger *zap.Logger
}

func (p *logProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	if p.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("trace_id", s.SpanContext().TraceID().String()),
		zap.String("span_id", s.SpanContext().SpanID().String()),
		zap.String("operation", s.Name()),
		zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
	}
	if s.Parent().IsValid() {
		fields = append(fields, zap.String("parent_id", s.Parent().SpanID().String()))
	}

	if s.Status().Code == codes.Error {
		fields = append(fields, zap.String("error", s.Status().Description))
		p.logger.Warn("span completed with error", fields...)
		return
	}
	p.logger.Debug("span completed", fields...)
}

func (p *logProcessor) Shutdown(context.Context) error   { return nil }
func (p *logProcessor) ForceFlush(context.Context) error { return nil }
