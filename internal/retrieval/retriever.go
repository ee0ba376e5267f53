// Package retrieval finds the chunks most relevant to a query, either inside
// one namespace or across every namespace in the index.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bull/curriculum-rag/internal/document"
	"github.com/bull/curriculum-rag/internal/storage"
)

const (
	DefaultTopK              = 3
	DefaultOverfetch         = 2
	DefaultGlobalConcurrency = 4
	DefaultPartitionTimeout  = 5 * time.Second
)

// Embedder embeds a single query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config tunes the global fan-out.
type Config struct {
	TopK int
	// Overfetch multiplies k for the per-partition candidate count.
	Overfetch         int
	GlobalConcurrency int
	PartitionTimeout  time.Duration
}

// Retriever runs vector searches against an index.
type Retriever struct {
	index    storage.Index
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a Retriever. Zero config values fall back to the defaults.
func New(index storage.Index, embedder Embedder, cfg Config, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Overfetch < 1 {
		cfg.Overfetch = DefaultOverfetch
	}
	if cfg.GlobalConcurrency <= 0 {
		cfg.GlobalConcurrency = DefaultGlobalConcurrency
	}
	if cfg.PartitionTimeout <= 0 {
		cfg.PartitionTimeout = DefaultPartitionTimeout
	}
	return &Retriever{
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// TopK returns the default result count.
func (r *Retriever) TopK() int {
	return r.cfg.TopK
}

// Search runs a scoped search when namespace is set and falls back to a global
// search when there is no namespace or the scoped search finds nothing.
// k <= 0 uses the configured default.
func (r *Retriever) Search(ctx context.Context, query, namespace string, k int, filter storage.Filter) []document.Chunk {
	if k <= 0 {
		k = r.cfg.TopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("Failed to embed query", "error", err)
		return []document.Chunk{}
	}

	if namespace != "" {
		scored, err := r.scopedSearch(ctx, vector, namespace, k, filter)
		if err != nil {
			r.logger.Warn("Scoped search failed, falling back to global search",
				"namespace", namespace,
				"error", err)
		}
		if len(scored) > 0 {
			return chunksOf(scored)
		}
		r.logger.Info("No results in namespace, searching globally", "namespace", namespace)
	}

	return r.globalSearch(ctx, vector, k, filter)
}

// ScopedSearch returns up to k chunks from one namespace, best first.
// Scores are similarities: distance metrics are negated.
func (r *Retriever) ScopedSearch(ctx context.Context, query, namespace string, k int, filter storage.Filter) ([]storage.ScoredChunk, error) {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.scopedSearch(ctx, vector, namespace, k, filter)
}

// GlobalSearch returns the k best chunks across every namespace. Failures are
// logged and yield an empty result rather than an error.
func (r *Retriever) GlobalSearch(ctx context.Context, query string, k int, filter storage.Filter) []document.Chunk {
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("Failed to embed query", "error", err)
		return []document.Chunk{}
	}
	return r.globalSearch(ctx, vector, k, filter)
}

func (r *Retriever) scopedSearch(ctx context.Context, vector []float32, namespace string, k int, filter storage.Filter) ([]storage.ScoredChunk, error) {
	if k <= 0 {
		return []storage.ScoredChunk{}, nil
	}

	scored, err := r.index.Query(ctx, storage.QueryRequest{
		Vector:    vector,
		Namespace: namespace,
		Limit:     k,
		Filter:    filter,
	})
	if err != nil {
		return nil, err
	}

	scored = toSimilarity(scored, r.index.Metric())
	sortByScore(scored)
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (r *Retriever) globalSearch(ctx context.Context, vector []float32, k int, filter storage.Filter) []document.Chunk {
	if k <= 0 {
		return []document.Chunk{}
	}

	stats, err := r.index.Describe(ctx)
	if err != nil {
		r.logger.Error("Failed to describe index for global search", "error", err)
		return []document.Chunk{}
	}
	if len(stats.Namespaces) == 0 {
		r.logger.Info("Index has no namespaces")
		return []document.Chunk{}
	}

	namespaces := make([]string, 0, len(stats.Namespaces))
	for ns := range stats.Namespaces {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)

	perPartition := k * r.cfg.Overfetch
	results := make([][]storage.ScoredChunk, len(namespaces))

	// Partition failures are logged, never returned, so one slow or broken
	// namespace does not cancel its siblings.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.GlobalConcurrency)

	for i, ns := range namespaces {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(gctx, r.cfg.PartitionTimeout)
			defer cancel()

			scored, err := r.index.Query(pctx, storage.QueryRequest{
				Vector:    vector,
				Namespace: ns,
				Limit:     perPartition,
				Filter:    filter,
			})
			if err != nil {
				r.logger.Warn("Partition query failed",
					"namespace", ns,
					"error", err)
				return nil
			}
			results[i] = scored
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		r.logger.Warn("Global search cancelled", "error", err)
		return []document.Chunk{}
	}

	var merged []storage.ScoredChunk
	for _, scored := range results {
		merged = append(merged, scored...)
	}

	merged = toSimilarity(merged, stats.Metric)
	sortByScore(merged)
	if len(merged) > k {
		merged = merged[:k]
	}

	r.logger.Debug("Global search complete",
		"namespaces", len(namespaces),
		"candidates", len(merged),
		"k", k)

	return chunksOf(merged)
}

// toSimilarity negates distance scores so that higher is always better.
func toSimilarity(scored []storage.ScoredChunk, metric storage.Metric) []storage.ScoredChunk {
	if metric.HigherIsBetter() {
		return scored
	}
	for i := range scored {
		scored[i].Score = -scored[i].Score
	}
	return scored
}

func sortByScore(scored []storage.ScoredChunk) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

func chunksOf(scored []storage.ScoredChunk) []document.Chunk {
	chunks := make([]document.Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks
}
