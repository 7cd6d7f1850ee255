package gemini

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
)

func TestGenerateResponse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, ":generateContent"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "bonjour"}]}}],
			"usageMetadata": {"promptTokenCount": 2, "candidatesTokenCount": 3, "totalTokenCount": 5},
			"modelVersion": "gemini-1.5-flash"
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, core.NoOpLogger{})
	resp, err := client.GenerateResponse(context.Background(), "hi", &core.AIOptions{Model: "gemini-1.5-flash"})
	require.NoError(t, err)
	assert.Equal(t, "bonjour", resp.Content)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestGenerateResponse_NoCandidatesIsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, core.NoOpLogger{})
	_, err := client.GenerateResponse(context.Background(), "hi", &core.AIOptions{Model: "gemini-1.5-flash"})
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
}
