// Package telemetry wires the orchestration core's optional OpenTelemetry
// tracing and the in-process counter registry that the event bus and AI
// gateway report through. It is deliberately small: a tracer provider, a
// counter registry keyed by declared metric name, and an otelhttp-wrapped
// HTTP client helper. There is no metric SDK/exporter behind the counters
// (this module's go.mod carries only the metric API package, not
// go.opentelemetry.io/otel/sdk/metric or an OTLP metric exporter) so
// Counter doubles as a local atomic tally in addition to recording through
// the OTel API; wiring a real metric exporter is a matter of adding that
// dependency and swapping the no-op global MeterProvider for a real one,
// nothing here would need to change.
package telemetry

import "fmt"

// Config controls whether tracing is enabled and where spans are exported.
// It carries the fields of core.TelemetryConfig except Insecure (the OTLP
// exporter always dials without TLS); cmd/modelcore/app.go copies the
// fields across.
type Config struct {
	Enabled bool

	// ServiceName tags every span and is used as the OTel resource's
	// service.name attribute.
	ServiceName string

	// Endpoint is the OTLP/gRPC collector address. Empty means "no
	// collector configured"; spans are written to stdout instead so
	// `modelcore run --input ...` still shows trace output locally.
	Endpoint string

	// SamplingRate is the fraction of traces recorded, in [0,1].
	SamplingRate float64
}

func (c Config) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("telemetry: service name is required")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("telemetry: sampling rate %v out of range [0,1]", c.SamplingRate)
	}
	return nil
}
