// Package ollama implements core.AIClient against a local or self-hosted
// Ollama server. Unlike the other providers it never requires an API key;
// only a reachable base URL.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/modelcore/agent/ai/providers"
	"github.com/modelcore/agent/core"
)

// DefaultBaseURL is the default local Ollama server address.
const DefaultBaseURL = "http://localhost:11434"

// Client implements core.AIClient for Ollama's /api/generate endpoint.
type Client struct {
	*providers.BaseClient
	baseURL string
}

// NewClient creates a new Ollama client. baseURL defaults to the local
// daemon address when empty.
func NewClient(baseURL string, logger core.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := providers.NewBaseClient(120*time.Second, logger)
	base.DefaultModel = "llama3"
	base.DefaultMaxTokens = 1000

	return &Client{BaseClient: base, baseURL: strings.TrimSuffix(baseURL, "/")}
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Stream  bool    `json:"stream"`
	Options options `json:"options,omitempty"`
}

type options struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// GenerateResponse generates a response using a local Ollama model.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options_ *core.AIOptions) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response")
	defer span.End()
	span.SetAttribute("ai.provider", "ollama")
	span.SetAttribute("ai.prompt_length", len(prompt))

	options_ = c.ApplyDefaults(options_)
	span.SetAttribute("ai.model", options_.Model)
	c.LogRequest("ollama", options_.Model, prompt)
	start := time.Now()

	reqBody := generateRequest{
		Model:  options_.Model,
		Prompt: prompt,
		System: options_.SystemPrompt,
		Stream: false,
		Options: options{
			Temperature: options_.Temperature,
			NumPredict:  options_.MaxTokens,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.ExecuteWithRetry(ctx, req)
	if err != nil {
		c.LogError("ollama", err)
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := c.HandleError(resp.StatusCode, body, "Ollama")
		span.RecordError(apiErr)
		span.SetAttribute("http.status_code", resp.StatusCode)
		return nil, apiErr
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Response == "" {
		span.RecordError(core.ErrEmptyResponse)
		return nil, core.ErrEmptyResponse
	}

	result := &core.AIResponse{
		Content: parsed.Response,
		Model:   parsed.Model,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}
	span.SetAttribute("ai.total_tokens", result.Usage.TotalTokens)
	c.LogResponse("ollama", result.Model, result.Usage, time.Since(start))
	return result, nil
}
