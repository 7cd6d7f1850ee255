package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds an *http.Client with timeout and an otelhttp-wrapped
// transport, so every outbound call an AI provider or embedder makes
// produces a client span (a child of whatever span StartSpan opened around
// the call) without each provider needing its own instrumentation.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}
