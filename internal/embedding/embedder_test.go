package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

// newTestServer serves /embeddings with vectors [i+1, len(text)] per input.
// The first failFirst requests answer with the given status.
func newTestServer(t *testing.T, failFirst int, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		if int(n) <= failFirst {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
			return
		}

		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float64{float64(i + 1), float64(len(text))},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func newTestEmbedder(t *testing.T, srv *httptest.Server, batchSize int) *Embedder {
	t.Helper()
	t.Setenv("TEST_EMBEDDING_KEY", "test-key")

	client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", APIKeyEnv: "TEST_EMBEDDING_KEY"})
	require.NoError(t, err)

	return NewEmbedder(client, Config{Model: "test-model", Dimension: 2, BatchSize: batchSize})
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("MISSING_EMBEDDING_KEY", "")
	_, err := NewClient(ClientConfig{APIKeyEnv: "MISSING_EMBEDDING_KEY"})
	assert.ErrorContains(t, err, "MISSING_EMBEDDING_KEY")
}

func TestEmbedder_Embed(t *testing.T) {
	srv, calls := newTestServer(t, 0, 0)
	e := newTestEmbedder(t, srv, 0)

	v, err := e.Embed(context.Background(), "photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 14}, v)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 2, e.Dimension())
}

func TestEmbedder_GenerateEmbeddingsBatches(t *testing.T) {
	srv, calls := newTestServer(t, 0, 0)
	e := newTestEmbedder(t, srv, 2)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.GenerateEmbeddings(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][1], "order preserved for %q", text)
	}
	// 5 texts at batch size 2
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedder_RetriesRateLimit(t *testing.T) {
	srv, calls := newTestServer(t, 1, http.StatusTooManyRequests)
	e := newTestEmbedder(t, srv, 0)

	v, err := e.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedder_DoesNotRetryOtherErrors(t *testing.T) {
	srv, calls := newTestServer(t, 10, http.StatusBadRequest)
	e := newTestEmbedder(t, srv, 0)

	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedder_DimensionCheck(t *testing.T) {
	srv, _ := newTestServer(t, 0, 0)
	t.Setenv("TEST_EMBEDDING_KEY", "test-key")
	client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", APIKeyEnv: "TEST_EMBEDDING_KEY"})
	require.NoError(t, err)

	e := NewEmbedder(client, Config{Model: "test-model", Dimension: 3})
	_, err = e.Embed(context.Background(), "x")
	assert.ErrorContains(t, err, "configured 3")
}

// newDimensionServer answers with vectors of the requested "dimensions", or
// 1536 values when the request omits it. The last requested value is recorded.
func newDimensionServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var requested atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input      []string `json:"input"`
			Model      string   `json:"model"`
			Dimensions *int     `json:"dimensions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		size := 1536
		requested.Store(0)
		if req.Dimensions != nil {
			size = *req.Dimensions
			requested.Store(int64(size))
		}

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": make([]float64, size)}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
			"usage":  map[string]any{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)

	return srv, &requested
}

func TestEmbedder_RequestedDimensions(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		dimension int
		wantSent  int64
	}{
		{"shortened text-embedding-3-small", "text-embedding-3-small", 512, 512},
		{"native size omitted", "text-embedding-3-small", 1536, 0},
		{"unknown model omitted", "nomic-embed-text", 1536, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requested := newDimensionServer(t)
			t.Setenv("TEST_EMBEDDING_KEY", "test-key")
			client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/v1/", APIKeyEnv: "TEST_EMBEDDING_KEY"})
			require.NoError(t, err)

			e := NewEmbedder(client, Config{Model: tt.model, Dimension: tt.dimension})
			vec, err := e.Embed(context.Background(), "photosynthesis")
			require.NoError(t, err)
			assert.Len(t, vec, tt.dimension)
			assert.Equal(t, tt.wantSent, requested.Load())
		})
	}
}

type countingEmbedder struct {
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return []float32{float32(len(text))}, nil
}

func (c *countingEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func (c *countingEmbedder) Dimension() int { return 1 }

func TestCachedEmbedder_CachesQueries(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := cached.Embed(ctx, "what is light")
		require.NoError(t, err)
		assert.Equal(t, []float32{13}, v)
	}
	assert.Equal(t, int32(1), inner.calls.Load())

	_, err := cached.Embed(ctx, "what is sound")
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Equal(t, 1, cached.Dimension())
}

func TestCachedEmbedder_BatchBypassesCache(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 10, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := cached.GenerateEmbeddings(ctx, []string{"a", "b"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), inner.calls.Load())
}
