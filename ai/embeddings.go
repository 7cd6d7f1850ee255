package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/modelcore/agent/core"
	"github.com/modelcore/agent/telemetry"
)

// EmbeddingProvider turns text into a fixed-dimension vector for the skill
// store's similarity search.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. It works
// unmodified against Ollama's OpenAI-compatible embeddings route by
// pointing BaseURL there.
type OpenAIEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	logger     core.Logger
}

// NewOpenAIEmbedder builds an embedder. apiKey may be empty for
// Ollama-compatible endpoints that don't require one.
func NewOpenAIEmbedder(apiKey, baseURL, model string, dimension int, logger core.Logger) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = openAIEmbeddingsBaseURL
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if dimension <= 0 {
		dimension = 384
	}
	if logger == nil {
		logger = core.NoOpLogger{}
	}
	return &OpenAIEmbedder{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: telemetry.NewHTTPClient(30 * time.Second),
		logger:     logger,
	}
}

const openAIEmbeddingsBaseURL = "https://api.openai.com/v1"

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the embedding vector for text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	jsonData, err := json.Marshal(embeddingRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.Warn("embedding request failed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("%w: %v", core.ErrEmbedderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", core.ErrEmbedderUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", core.ErrEmbedderUnavailable, resp.StatusCode, string(body))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", core.ErrEmbedderUnavailable, err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", core.ErrEmbedderUnavailable)
	}
	return parsed.Data[0].Embedding, nil
}

// Dimension reports the configured vector width.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// HashEmbedder is a deterministic, dependency-free EmbeddingProvider used in
// offline tests and demo mode when no real embedding endpoint is
// configured. It hashes each lowercased whitespace-separated token into a
// fixed-width vector and
// L2-normalizes the result, so cosine similarity still behaves sensibly for
// near-duplicate text even though it carries no real semantics.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder builds a HashEmbedder with the given vector width.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed never fails; it always returns a vector of length Dimension().
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dimension)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New32a()
		_, _ = hasher.Write([]byte(token))
		idx := int(hasher.Sum32()) % h.dimension
		if idx < 0 {
			idx += h.dimension
		}
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}

// Dimension reports the configured vector width.
func (h *HashEmbedder) Dimension() int { return h.dimension }
