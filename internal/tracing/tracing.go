// Package tracing provides distributed tracing support for the LogAI engine
// using OpenTelemetry, with HTTP-header propagation helpers for callers
// that sit outside the OTel context chain.
package tracing

import (
	"context"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config holds OpenTelemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Enabled        bool
}

var globalTracer trace.Tracer

// Init initializes OpenTelemetry with the given configuration. Returns a
// shutdown function that should be called on application exit.
func Init(cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	globalTracer = tp.Tracer(cfg.ServiceName)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return tp.Shutdown(ctx)
	}, nil
}

// Tracer returns the global tracer, falling back to a no-op tracer if Init
// was never called.
func Tracer() trace.Tracer {
	if globalTracer == nil {
		return otel.Tracer("noop")
	}
	return globalTracer
}

// SpanKind categorizes a span by the engine concern it belongs to.
type SpanKind string

const (
	SpanKindComponent SpanKind = "component" // C1-C8 component invocation
	SpanKindUpstream  SpanKind = "upstream"  // call to LLM/vector-index/warehouse/bus
	SpanKindCache     SpanKind = "cache"
)

// ComponentSpan starts a span for one C1-C8 component invocation within a
// chat turn or ingest job.
func ComponentSpan(ctx context.Context, component string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "logai.component."+component,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("logai.component", component),
			attribute.String("logai.span.kind", string(SpanKindComponent)),
		),
	)
}

// UpstreamSpan starts a span for an outbound call to a collaborator.
func UpstreamSpan(ctx context.Context, collaborator, operation string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "logai.upstream."+collaborator,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("logai.upstream.collaborator", collaborator),
			attribute.String("logai.upstream.operation", operation),
			attribute.String("logai.span.kind", string(SpanKindUpstream)),
		),
	)
}

// CacheSpan starts a span for a session/evidence cache operation.
func CacheSpan(ctx context.Context, operation string, hit bool) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "logai.cache."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.Bool("cache.hit", hit),
			attribute.String("logai.span.kind", string(SpanKindCache)),
		),
	)
}

// RecordError records an error on the span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("error", true))
	}
}

// SetSuccess marks the span as successful.
func SetSuccess(span trace.Span) {
	span.SetAttributes(attribute.Bool("logai.success", true))
}

// HTTP headers for trace propagation to/from the (out-of-scope) HTTP layer.
const (
	TraceIDHeader   = "X-Trace-ID"
	SpanIDHeader    = "X-Span-ID"
	RequestIDHeader = "X-Request-ID"
)

// Info carries trace/span identifiers for propagation outside the OTel
// context chain (e.g. into log fields or outbound HTTP headers).
type Info struct {
	TraceID string
	SpanID  string
}

// FromContext extracts trace information from the active OTel span.
func FromContext(ctx context.Context) Info {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return Info{}
	}
	return Info{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}

// Headers returns trace info as HTTP headers for propagation.
func (t Info) Headers() map[string]string {
	if t.TraceID == "" {
		return nil
	}
	return map[string]string{
		TraceIDHeader:   t.TraceID,
		SpanIDHeader:    t.SpanID,
		RequestIDHeader: t.TraceID,
	}
}
