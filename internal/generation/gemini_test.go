package generation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeminiServer(t *testing.T, reply string, bodies chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if bodies != nil {
			bodies <- string(body)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": reply}},
				},
				"finishReason": "STOP",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestGeminiProvider_Generate(t *testing.T) {
	srv := newGeminiServer(t, "Mitochondria release energy.", nil)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := p.Generate(context.Background(), "What do mitochondria do?")
	require.NoError(t, err)
	assert.Equal(t, "Mitochondria release energy.", text)
	assert.Equal(t, "gemini", p.Name())
}

func TestGeminiProvider_IsVisionProvider(t *testing.T) {
	srv := newGeminiServer(t, "This diagram shows the water cycle.", nil)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	chain := NewChain([]Provider{p}, 0, nil)
	assert.True(t, chain.SupportsImageInput())
}

func TestGeminiProvider_GenerateFromImage(t *testing.T) {
	bodies := make(chan string, 1)
	srv := newGeminiServer(t, "This diagram shows the water cycle.", bodies)

	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	text, err := p.GenerateFromImage(context.Background(), "Explain this diagram", Image{
		Data:     []byte("fake-png-bytes"),
		MIMEType: "image/png",
	})
	require.NoError(t, err)
	assert.Equal(t, "This diagram shows the water cycle.", text)

	body := <-bodies
	assert.True(t, strings.Contains(body, "Explain this diagram"))
	assert.True(t, strings.Contains(body, "image/png"))
}

func TestGeminiProvider_EmptyImage(t *testing.T) {
	srv := newGeminiServer(t, "unused", nil)
	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = p.GenerateFromImage(context.Background(), "Explain", Image{})
	assert.Error(t, err)
}
