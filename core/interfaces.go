package core

import (
	"context"
	"time"
)

// Logger is the minimal structured logging interface used throughout the
// orchestration core. Implementations are expected to be safe for
// concurrent use.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with a component tag, so a single
// base logger can be specialized per subsystem:
//
//	log.WithComponent("modelcore/raoi")
//	log.WithComponent("modelcore/router")
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry is the optional observability hook used around every
// suspension point (LLM calls, backend calls, vector search).
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a single telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// AIOptions configures a single LLM gateway call.
type AIOptions struct {
	Model        string
	Temperature  float32
	MaxTokens    int
	SystemPrompt string
}

// AIResponse is the result of a single LLM gateway call.
type AIResponse struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage reports token accounting for an AIResponse.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// AIClient is the minimal LLM call interface shared by the gateway and its
// per-provider clients.
type AIClient interface {
	GenerateResponse(ctx context.Context, prompt string, options *AIOptions) (*AIResponse, error)
}

// StreamChunk is one piece of an in-progress streamed completion.
type StreamChunk struct {
	Content      string
	Done         bool
	FinishReason string
	Model        string
	Usage        *TokenUsage
}

// StreamCallback receives StreamChunks as they arrive. Returning an error
// stops the stream early; the gateway returns the partial content gathered
// so far alongside core.ErrStreamPartiallyCompleted (not the callback's own
// error).
type StreamCallback func(chunk StreamChunk) error

// StreamingAIClient is implemented by providers with native token-by-token
// streaming support. Providers that don't implement it are driven through
// CallStream by a single GenerateResponse call followed by one synthetic
// chunk, so callers never need to branch on provider capability.
type StreamingAIClient interface {
	AIClient
	GenerateResponseStream(ctx context.Context, prompt string, options *AIOptions, cb StreamCallback) (*AIResponse, error)
}


// Clock abstracts time so tests can control timestamps deterministically.
// Production code uses RealClock; tests may substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
