package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/modelcore/agent/core"
)

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer = otel.Tracer("modelcore")
)

// Initialize builds and installs a global tracer provider from cfg. Calling
// it twice replaces the previous provider; call Shutdown first if the old
// one's buffered spans still need flushing. Initialize does nothing and
// returns nil if cfg.Enabled is false, so callers can call it unconditionally.
func Initialize(cfg Config) error {
	if !cfg.Enabled {
		return nil
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	ctx := context.Background()
	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("telemetry: building span exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)

	mu.Lock()
	provider = tp
	tracer = tp.Tracer("modelcore")
	mu.Unlock()

	otel.SetTracerProvider(tp)
	return nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	return otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
}

// Shutdown flushes and stops the active tracer provider. It is safe to call
// even when Initialize was never called (Enabled was false, or init
// failed). cmd/modelcore/app.go uses it as the app's shutdown func only
// after Initialize succeeds, and a no-op func otherwise.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	tracer = otel.Tracer("modelcore")
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// Provider returns the current process's telemetry as a core.Telemetry, for
// injection into ai.AIConfig.Telemetry and similar optional hooks. It is
// always safe to call and always non-nil: before Initialize, or when
// tracing is disabled, spans are recorded against the OTel no-op tracer, so
// callers never need to nil-check the result.
func Provider() core.Telemetry { return coreAdapter{} }

type coreAdapter struct{}

var _ core.Telemetry = coreAdapter{}

func (coreAdapter) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	mu.Lock()
	t := tracer
	mu.Unlock()
	spanCtx, span := t.Start(ctx, name)
	return spanCtx, otelSpan{span: span}
}

func (coreAdapter) RecordMetric(name string, value float64, labels map[string]string) {
	kvs := make([]string, 0, len(labels)*2)
	for k, v := range labels {
		kvs = append(kvs, k, v)
	}
	addCounter(name, value, kvs...)
}

type otelSpan struct {
	span trace.Span
}

var _ core.Span = otelSpan{}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s otelSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}
