// Package openai implements core.AIClient against OpenAI's chat completions
// API, and doubles as the client for any OpenAI-compatible endpoint reachable
// by setting BaseURL (self-hosted gateways, proxies, etc).
package openai

import (
	"bufio"
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

// DefaultBaseURL is the default OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Client implements core.AIClient and core.StreamingAIClient for OpenAI.
type Client struct {
	*providers.BaseClient
	apiKey  string
	baseURL string
}

// NewClient creates an OpenAI client. apiKey is required; baseURL defaults
// to the public API but may point at any compatible gateway.
func NewClient(apiKey, baseURL string, logger core.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := providers.NewBaseClient(60*time.Second, logger)
	base.DefaultModel = "gpt-4o-mini"
	base.DefaultMaxTokens = 1000

	return &Client{
		BaseClient: base,
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *Client) buildRequest(prompt string, options *core.AIOptions, stream bool) map[string]interface{} {
	messages := make([]map[string]string, 0, 2)
	if options.SystemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": options.SystemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": prompt})

	body := map[string]interface{}{
		"model":       options.Model,
		"messages":    messages,
		"temperature": options.Temperature,
		"max_tokens":  options.MaxTokens,
	}
	if stream {
		body["stream"] = true
	}
	return body
}

// GenerateResponse sends a single non-streaming completion request.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response")
	defer span.End()
	span.SetAttribute("ai.provider", "openai")
	span.SetAttribute("ai.prompt_length", len(prompt))

	if c.apiKey == "" {
		err := fmt.Errorf("openai: %w", core.ErrMissingCredentials)
		span.RecordError(err)
		return nil, err
	}

	options = c.ApplyDefaults(options)
	span.SetAttribute("ai.model", options.Model)
	c.LogRequest("openai", options.Model, prompt)
	start := time.Now()

	jsonData, err := json.Marshal(c.buildRequest(prompt, options, false))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.ExecuteWithRetry(ctx, req)
	if err != nil {
		c.LogError("openai", err)
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
		apiErr := c.HandleError(resp.StatusCode, body, "OpenAI")
		span.RecordError(apiErr)
		span.SetAttribute("http.status_code", resp.StatusCode)
		return nil, apiErr
	}

	var parsed OpenAIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		span.RecordError(core.ErrEmptyResponse)
		return nil, core.ErrEmptyResponse
	}

	result := &core.AIResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}
	span.SetAttribute("ai.total_tokens", result.Usage.TotalTokens)
	c.LogResponse("openai", result.Model, result.Usage, time.Since(start))
	return result, nil
}

// GenerateResponseStream streams the completion over server-sent events,
// invoking cb with each delta as it arrives.
func (c *Client) GenerateResponseStream(ctx context.Context, prompt string, options *core.AIOptions, cb core.StreamCallback) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response_stream")
	defer span.End()
	span.SetAttribute("ai.provider", "openai")
	span.SetAttribute("ai.streaming", true)

	if c.apiKey == "" {
		err := fmt.Errorf("openai: %w", core.ErrMissingCredentials)
		span.RecordError(err)
		return nil, err
	}

	options = c.ApplyDefaults(options)
	c.LogRequest("openai", options.Model, prompt)
	start := time.Now()

	jsonData, err := json.Marshal(c.buildRequest(prompt, options, true))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %v", core.ErrBackendUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := c.HandleError(resp.StatusCode, body, "OpenAI")
		span.RecordError(apiErr)
		return nil, apiErr
	}

	var content strings.Builder
	var model, finishReason string
	var usage core.TokenUsage
	reader := bufio.NewReader(resp.Body)

	for {
		line, readErr := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			if data, ok := strings.CutPrefix(line, "data: "); ok && data != "[DONE]" {
				var chunk OpenAIResponse
				if jsonErr := json.Unmarshal([]byte(data), &chunk); jsonErr == nil && len(chunk.Choices) > 0 {
					model = chunk.Model
					delta := chunk.Choices[0].Delta.Content
					if delta != "" {
						content.WriteString(delta)
						if cbErr := cb(core.StreamChunk{Content: delta, Model: model}); cbErr != nil {
							return &core.AIResponse{Content: content.String(), Model: model}, core.ErrStreamPartiallyCompleted
						}
					}
					if chunk.Choices[0].FinishReason != "" {
						finishReason = chunk.Choices[0].FinishReason
					}
					usage = core.TokenUsage{
						PromptTokens:     chunk.Usage.PromptTokens,
						CompletionTokens: chunk.Usage.CompletionTokens,
						TotalTokens:      chunk.Usage.TotalTokens,
					}
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			span.SetAttribute("ai.stream_partial", true)
			return &core.AIResponse{Content: content.String(), Model: model}, core.ErrStreamPartiallyCompleted
		}
	}

	_ = cb(core.StreamChunk{Done: true, FinishReason: finishReason, Model: model, Usage: &usage})
	result := &core.AIResponse{Content: content.String(), Model: model, Usage: usage}
	c.LogResponse("openai", model, usage, time.Since(start))
	return result, nil
}
