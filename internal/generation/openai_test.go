package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

type capturedRequest struct {
	path    string
	headers http.Header
	body    chatRequest
}

// newChatServer answers chat completions with content. The first failFirst
// requests get status instead.
func newChatServer(t *testing.T, content string, failFirst int, status int) (*httptest.Server, *atomic.Int32, chan capturedRequest) {
	t.Helper()
	var calls atomic.Int32
	captured := make(chan capturedRequest, 10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)

		var body chatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		captured <- capturedRequest{path: r.URL.Path, headers: r.Header.Clone(), body: body}

		w.Header().Set("Content-Type", "application/json")
		if int(n) <= failFirst {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"nope","type":"error"}}`)
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &calls, captured
}

func TestOpenAIProvider_Generate(t *testing.T) {
	srv, _, captured := newChatServer(t, "Light travels in straight lines.", 0, 0)

	p := NewOpenAIProvider(OpenAIConfig{
		Model:     "gpt-4o-mini",
		BaseURL:   srv.URL + "/v1/",
		APIKey:    "test",
		MaxTokens: 200,
	})

	text, err := p.Generate(context.Background(), "What is light?")
	require.NoError(t, err)
	assert.Equal(t, "Light travels in straight lines.", text)
	assert.Equal(t, "openai", p.Name())

	req := <-captured
	assert.Equal(t, "/v1/chat/completions", req.path)
	assert.Equal(t, "gpt-4o-mini", req.body.Model)
	assert.Equal(t, 200, req.body.MaxTokens)
	require.Len(t, req.body.Messages, 1)
	assert.Equal(t, "user", req.body.Messages[0].Role)
	assert.Equal(t, "What is light?", req.body.Messages[0].Content)
}

func TestOpenRouterProvider_SendsHeaders(t *testing.T) {
	srv, _, captured := newChatServer(t, "ok", 0, 0)

	p := NewOpenRouterProvider(OpenAIConfig{Model: "qwen/qwen3-4b:free", BaseURL: srv.URL, APIKey: "key"})
	_, err := p.Generate(context.Background(), "hi")
	require.NoError(t, err)

	req := <-captured
	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, "Curriculum RAG", req.headers.Get("X-Title"))
	assert.NotEmpty(t, req.headers.Get("HTTP-Referer"))
	assert.Equal(t, "Bearer key", req.headers.Get("Authorization"))
}

func TestOllamaProvider_UsesCompatibleEndpoint(t *testing.T) {
	srv, _, captured := newChatServer(t, "local answer", 0, 0)

	p := NewOllamaProvider(OpenAIConfig{Model: "qwen2.5", BaseURL: srv.URL})
	text, err := p.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "local answer", text)
	assert.Equal(t, "ollama", p.Name())

	req := <-captured
	assert.Equal(t, "/v1/chat/completions", req.path)
	assert.Equal(t, "qwen2.5", req.body.Model)
}

func TestOpenAIProvider_RetriesRateLimit(t *testing.T) {
	srv, calls, _ := newChatServer(t, "after retry", 1, http.StatusTooManyRequests)

	p := NewOpenAIProvider(OpenAIConfig{Model: "m", BaseURL: srv.URL, APIKey: "k", RetryWindow: 10 * time.Second})
	text, err := p.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "after retry", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIProvider_AuthErrorIsPermanent(t *testing.T) {
	srv, calls, _ := newChatServer(t, "unused", 10, http.StatusUnauthorized)

	p := NewOpenAIProvider(OpenAIConfig{Model: "m", BaseURL: srv.URL, APIKey: "bad", RetryWindow: 10 * time.Second})
	_, err := p.Generate(context.Background(), "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIProvider_InChainFallsThroughOnError(t *testing.T) {
	srv, _, _ := newChatServer(t, "unused", 10, http.StatusInternalServerError)
	broken := NewOpenAIProvider(OpenAIConfig{Name: "broken", Model: "m", BaseURL: srv.URL, APIKey: "k"})
	backup := &fakeProvider{name: "backup", text: "backup answer"}

	chain := NewChain([]Provider{broken, backup}, 5*time.Second, nil)
	out := chain.GenerateDetailed(context.Background(), "hi")
	assert.Equal(t, "backup answer", out.Text)
	assert.Equal(t, "backup", out.Provider)
}
