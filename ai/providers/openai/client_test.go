package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelcore/agent/core"
)

func TestGenerateResponse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"choices": [{"message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7}
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, core.NoOpLogger{})
	resp, err := client.GenerateResponse(context.Background(), "hi", &core.AIOptions{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
}

func TestGenerateResponse_MissingAPIKey(t *testing.T) {
	client := NewClient("", "", core.NoOpLogger{})
	_, err := client.GenerateResponse(context.Background(), "hi", &core.AIOptions{})
	assert.ErrorIs(t, err, core.ErrMissingCredentials)
}

func TestGenerateResponse_EmptyChoicesIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model": "gpt-4o-mini", "choices": []}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, core.NoOpLogger{})
	_, err := client.GenerateResponse(context.Background(), "hi", &core.AIOptions{})
	assert.ErrorIs(t, err, core.ErrEmptyResponse)
}

func TestGenerateResponseStream_DeliversDeltasAndDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: {\"model\":\"gpt-4o-mini\",\"choices\":[{\"delta\":{\"content\":\"hel\"}}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: {\"model\":\"gpt-4o-mini\",\"choices\":[{\"delta\":{\"content\":\"lo\"},\"finish_reason\":\"stop\"}]}\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := NewClient("test-key", srv.URL, core.NoOpLogger{})
	var got string
	var sawDone bool
	_, err := client.GenerateResponseStream(context.Background(), "hi", &core.AIOptions{}, func(c core.StreamChunk) error {
		got += c.Content
		if c.Done {
			sawDone = true
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.True(t, sawDone)
}
