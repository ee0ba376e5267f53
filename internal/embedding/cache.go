package embedding

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Hour
)

// CachedEmbedder memoises single-text query embeddings. Batch calls from the
// indexer bypass the cache.
type CachedEmbedder struct {
	inner TextEmbedder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEmbedder wraps inner with an expiring LRU cache.
func NewCachedEmbedder(inner TextEmbedder, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}

	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *CachedEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return c.inner.GenerateEmbeddings(ctx, texts)
}

func (c *CachedEmbedder) Dimension() int {
	return c.inner.Dimension()
}
