// Package tracing wires the gateway's query dispatch pipeline into
// OpenTelemetry, exporting spans over OTLP/gRPC.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerProvider owns the OTLP exporter and the process-wide tracer.
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

// QueryTracer traces a tenant query through dispatch: pool acquisition,
// cache lookup and execution.
type QueryTracer struct {
	tracer trace.Tracer
}

// NewTracerProvider dials otlpEndpoint over gRPC and installs the resulting
// provider as the process-wide otel.TracerProvider.
func NewTracerProvider(serviceName, serviceVersion, otlpEndpoint string) (*TracerProvider, error) {
	exporter, err := otlptracegrpc.New(
		context.Background(),
		otlptracegrpc.WithEndpoint(otlpEndpoint),
		otlptracegrpc.WithInsecure(), // TODO: add TLS once the collector terminates it
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			semconv.ServiceNamespaceKey.String("tenant-gateway"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()), // TODO: sample below 100% once volume justifies it
	)

	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans and closes the exporter connection.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	return tp.tp.Shutdown(ctx)
}

// NewQueryTracer creates a tracer scoped to serviceName.
func NewQueryTracer(serviceName string) *QueryTracer {
	return &QueryTracer{tracer: otel.Tracer(serviceName)}
}

// StartQuerySpan starts the root span for one dispatched tenant query.
func (qt *QueryTracer) StartQuerySpan(ctx context.Context, tenantID, queryID, queryText string) (context.Context, trace.Span) {
	return qt.tracer.Start(ctx, "tenant_query",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("query.id", queryID),
			attribute.String("query.text", queryText),
			attribute.String("component", "dispatch"),
		),
	)
}

// StartPoolAcquireSpan starts a span around acquiring a tenant connection
// lease from the pool manager.
func (qt *QueryTracer) StartPoolAcquireSpan(ctx context.Context, tenantID string) (context.Context, trace.Span) {
	return qt.tracer.Start(ctx, "pool_acquire",
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("component", "pool"),
		),
	)
}

// StartCacheOperationSpan starts a span around a result/schema cache lookup.
func (qt *QueryTracer) StartCacheOperationSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return qt.tracer.Start(ctx, "cache_operation",
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
			attribute.String("component", "cache"),
		),
	)
}

// AddQueryAttributes adds arbitrary attributes to an already-open span.
func (qt *QueryTracer) AddQueryAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
}

// RecordQueryMetrics annotates span with the outcome of the dispatched query.
func (qt *QueryTracer) RecordQueryMetrics(span trace.Span, duration time.Duration, rowCount int64, success bool) {
	span.SetAttributes(
		attribute.Int64("query.duration_ms", duration.Milliseconds()),
		attribute.Int64("query.row_count", rowCount),
		attribute.Bool("query.success", success),
	)
	if !success {
		span.SetStatus(codes.Error, "query failed")
	}
}

// RecordCacheMetrics annotates span with a cache hit/miss outcome.
func (qt *QueryTracer) RecordCacheMetrics(span trace.Span, hit bool, duration time.Duration) {
	span.SetAttributes(
		attribute.Bool("cache.hit", hit),
		attribute.Int64("cache.duration_ms", duration.Milliseconds()),
	)
}

// RecordError marks span as failed and attaches err.
func (qt *QueryTracer) RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
	span.RecordError(err)
}

var globalQueryTracer *QueryTracer

// InitGlobalTracer installs the process-wide QueryTracer used by handlers
// that don't have one threaded through explicitly.
func InitGlobalTracer(serviceName string) {
	globalQueryTracer = NewQueryTracer(serviceName)
}

// GetGlobalTracer returns the tracer installed by InitGlobalTracer, or nil
// if tracing was never initialized (e.g. monitoring.tracing_enabled=false).
func GetGlobalTracer() *QueryTracer {
	return globalQueryTracer
}
