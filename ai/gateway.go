package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/modelcore/agent/ai/providers/anthropic"
	"github.com/modelcore/agent/ai/providers/gemini"
	"github.com/modelcore/agent/ai/providers/ollama"
	"github.com/modelcore/agent/ai/providers/openai"
	"github.com/modelcore/agent/core"
)

// Gateway is the unified entry point the rest of the framework calls
// through: one provider-agnostic client per session/component, selected
// once at construction time from AIConfig.Provider.
type Gateway struct {
	provider   Provider
	client     core.AIClient
	maxRetries int
	logger     core.Logger
}

// NewGateway constructs a Gateway for the configured provider. Ollama is
// the only provider that does not require an API key; the others fail
// fast at construction if one is missing.
func NewGateway(cfg AIConfig) (*Gateway, error) {
	if cfg.Logger == nil {
		cfg.Logger = core.NoOpLogger{}
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	provider := Provider(cfg.Provider)
	var client core.AIClient

	switch provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai: openai provider: %w", core.ErrMissingCredentials)
		}
		client = openai.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Logger)
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai: anthropic provider: %w", core.ErrMissingCredentials)
		}
		client = anthropic.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Logger)
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("ai: gemini provider: %w", core.ErrMissingCredentials)
		}
		client = gemini.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Logger)
	case ProviderOllama:
		client = ollama.NewClient(cfg.BaseURL, cfg.Logger)
	default:
		return nil, fmt.Errorf("ai: unknown provider %q: %w", cfg.Provider, core.ErrInvalidConfiguration)
	}

	return &Gateway{provider: provider, client: client, maxRetries: cfg.MaxRetries, logger: cfg.Logger}, nil
}

// arithmeticBackOff grows linearly (base, 2*base, 3*base, ...) rather than
// exponentially. The gateway retries against models that rate-limit on a
// roughly constant cadence, where exponential backoff over-penalizes the
// second and third attempt.
type arithmeticBackOff struct {
	base    time.Duration
	attempt int
}

func (b *arithmeticBackOff) NextBackOff() time.Duration {
	b.attempt++
	return b.base * time.Duration(b.attempt)
}

func (b *arithmeticBackOff) Reset() {
	b.attempt = 0
}

// Call issues a single completion request, retrying retryable failures
// (unreachable endpoint, empty response) with arithmetic backoff.
func (g *Gateway) Call(ctx context.Context, prompt string, opts *core.AIOptions) (*core.AIResponse, error) {
	backOff := &arithmeticBackOff{base: 250 * time.Millisecond}

	result, err := backoff.Retry(ctx, func() (*core.AIResponse, error) {
		resp, err := g.client.GenerateResponse(ctx, prompt, opts)
		if err != nil {
			if core.IsRetryable(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return resp, nil
	}, backoff.WithBackOff(backOff), backoff.WithMaxTries(uint(g.maxRetries+1)))

	if err != nil {
		return nil, fmt.Errorf("ai gateway call (%s): %w", g.provider, err)
	}
	return result, nil
}

// CallStream issues a streaming completion request. Providers without
// native streaming support are driven through a single GenerateResponse
// call, with the full content delivered as one chunk followed by a Done
// chunk, so callers never need to check provider capability.
func (g *Gateway) CallStream(ctx context.Context, prompt string, opts *core.AIOptions, onChunk core.StreamCallback) (*core.AIResponse, error) {
	if streaming, ok := g.client.(core.StreamingAIClient); ok {
		return streaming.GenerateResponseStream(ctx, prompt, opts, onChunk)
	}

	resp, err := g.Call(ctx, prompt, opts)
	if err != nil {
		return nil, err
	}
	if cbErr := onChunk(core.StreamChunk{Content: resp.Content, Model: resp.Model}); cbErr != nil {
		return resp, core.ErrStreamPartiallyCompleted
	}
	_ = onChunk(core.StreamChunk{Done: true, Model: resp.Model, Usage: &resp.Usage})
	return resp, nil
}

// Provider reports which backend this Gateway was constructed for.
func (g *Gateway) Provider() Provider {
	return g.provider
}
