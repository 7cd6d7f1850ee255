// Package ai implements the LLM Gateway: a provider-agnostic facade over
// OpenAI, Anthropic, Gemini and Ollama chat completion APIs, with bounded
// retry and optional streaming.
package ai

import (
	"time"

	"github.com/modelcore/agent/core"
)

// Provider identifies which backend a Gateway call is routed to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
)

// AIConfig holds the configuration needed to construct a Gateway.
type AIConfig struct {
	Provider string
	APIKey   string
	BaseURL  string

	Timeout    time.Duration
	MaxRetries int

	Model       string
	Temperature float32
	MaxTokens   int

	Logger    core.Logger
	Telemetry core.Telemetry
}

// AIOption configures an AIConfig.
type AIOption func(*AIConfig)

func WithProvider(provider string) AIOption {
	return func(c *AIConfig) { c.Provider = provider }
}

func WithAPIKey(key string) AIOption {
	return func(c *AIConfig) { c.APIKey = key }
}

func WithBaseURL(url string) AIOption {
	return func(c *AIConfig) { c.BaseURL = url }
}

func WithTimeout(timeout time.Duration) AIOption {
	return func(c *AIConfig) { c.Timeout = timeout }
}

func WithMaxRetries(retries int) AIOption {
	return func(c *AIConfig) { c.MaxRetries = retries }
}

func WithModel(model string) AIOption {
	return func(c *AIConfig) { c.Model = model }
}

func WithTemperature(temp float32) AIOption {
	return func(c *AIConfig) { c.Temperature = temp }
}

func WithMaxTokens(tokens int) AIOption {
	return func(c *AIConfig) { c.MaxTokens = tokens }
}

func WithLogger(logger core.Logger) AIOption {
	return func(c *AIConfig) { c.Logger = logger }
}

func WithTelemetry(telemetry core.Telemetry) AIOption {
	return func(c *AIConfig) { c.Telemetry = telemetry }
}
