// Package gemini implements core.AIClient against Google's Gemini
// GenerateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelcore/agent/ai/providers"
	"github.com/modelcore/agent/core"
)

// DefaultBaseURL is the default Gemini API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client implements core.AIClient for Google Gemini.
type Client struct {
	*providers.BaseClient
	apiKey  string
	baseURL string
}

// NewClient creates a new Gemini client.
func NewClient(apiKey, baseURL string, logger core.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := providers.NewBaseClient(60*time.Second, logger)
	base.DefaultModel = "gemini-1.5-flash"
	base.DefaultMaxTokens = 1000

	return &Client{BaseClient: base, apiKey: apiKey, baseURL: baseURL}
}

// GenerateResponse generates a response using Gemini's GenerateContent API.
func (c *Client) GenerateResponse(ctx context.Context, prompt string, options *core.AIOptions) (*core.AIResponse, error) {
	ctx, span := c.StartSpan(ctx, "ai.generate_response")
	defer span.End()
	span.SetAttribute("ai.provider", "gemini")
	span.SetAttribute("ai.prompt_length", len(prompt))

	if c.apiKey == "" {
		err := fmt.Errorf("gemini: %w", core.ErrMissingCredentials)
		span.RecordError(err)
		return nil, err
	}

	options = c.ApplyDefaults(options)
	span.SetAttribute("ai.model", options.Model)
	c.LogRequest("gemini", options.Model, prompt)
	start := time.Now()

	reqBody := GeminiRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: prompt}}}},
		GenerationConfig: &GenerationConfig{
			Temperature:     options.Temperature,
			MaxOutputTokens: options.MaxTokens,
		},
	}
	if options.SystemPrompt != "" {
		reqBody.SystemInstruction = &SystemInstruction{Parts: []Part{{Text: options.SystemPrompt}}}
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, options.Model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.ExecuteWithRetry(ctx, req)
	if err != nil {
		c.LogError("gemini", err)
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
		apiErr := c.HandleError(resp.StatusCode, body, "Gemini")
		span.RecordError(apiErr)
		span.SetAttribute("http.status_code", resp.StatusCode)
		return nil, apiErr
	}

	var parsed GeminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var content string
	if len(parsed.Candidates) > 0 {
		for _, part := range parsed.Candidates[0].Content.Parts {
			content += part.Text
		}
	}
	if content == "" {
		span.RecordError(core.ErrEmptyResponse)
		return nil, core.ErrEmptyResponse
	}

	result := &core.AIResponse{
		Content: content,
		Model:   parsed.ModelVersion,
		Usage: core.TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}
	if result.Model == "" {
		result.Model = options.Model
	}
	span.SetAttribute("ai.total_tokens", result.Usage.TotalTokens)
	c.LogResponse("gemini", result.Model, result.Usage, time.Since(start))
	return result, nil
}
