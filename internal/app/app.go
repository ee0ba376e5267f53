// Package app wires configuration into the running service components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bull/curriculum-rag/internal/assessment"
	"github.com/bull/curriculum-rag/internal/config"
	"github.com/bull/curriculum-rag/internal/embedding"
	"github.com/bull/curriculum-rag/internal/feedback"
	ghclient "github.com/bull/curriculum-rag/internal/github"
	"github.com/bull/curriculum-rag/internal/generation"
	"github.com/bull/curriculum-rag/internal/indexer"
	"github.com/bull/curriculum-rag/internal/rag"
	"github.com/bull/curriculum-rag/internal/retrieval"
	"github.com/bull/curriculum-rag/internal/splitter"
	"github.com/bull/curriculum-rag/internal/storage"
)

// ErrNoSource is returned when neither a directory nor a GitHub repository is
// configured for indexing.
var ErrNoSource = errors.New("no processed file source configured; set indexing.dir or indexing.github")

// App holds the wired service components.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Index       storage.Index
	Embedder    embedding.TextEmbedder
	Retriever   *retrieval.Retriever
	Chain       *generation.Chain
	RAG         *rag.Service
	Assessments *assessment.Generator
	Pipeline    *indexer.Pipeline
	Feedback    *feedback.Store
}

type options struct {
	embedder  embedding.TextEmbedder
	providers []generation.Provider
	index     storage.Index
}

// Option overrides a component normally built from config.
type Option func(*options)

// WithEmbedder replaces the OpenAI embedder.
func WithEmbedder(e embedding.TextEmbedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithProviders replaces the configured generation providers.
func WithProviders(p ...generation.Provider) Option {
	return func(o *options) { o.providers = p }
}

// WithIndex replaces the configured vector store.
func WithIndex(idx storage.Index) Option {
	return func(o *options) { o.index = idx }
}

// New builds every component from cfg. The caller must Close the result.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	embedder := o.embedder
	if embedder == nil {
		client, err := embedding.NewClient(embedding.ClientConfig{
			BaseURL:   cfg.Embedding.BaseURL,
			APIKeyEnv: cfg.Embedding.APIKeyEnv,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding client: %w", err)
		}
		embedder = embedding.NewEmbedder(client, embedding.Config{
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
			BatchSize: cfg.Embedding.BatchSize,
		})
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize, cfg.Embedding.CacheTTL)

	index := o.index
	if index == nil {
		var err error
		index, err = newIndex(cfg, embedder.Dimension(), logger)
		if err != nil {
			return nil, err
		}
	}
	if err := index.EnsureIndex(ctx); err != nil {
		index.Close()
		return nil, fmt.Errorf("failed to ensure index: %w", err)
	}

	providers := o.providers
	if providers == nil {
		var err error
		providers, err = generation.NewProvidersFromConfig(ctx, cfg.Generation.Providers, logger)
		if err != nil {
			index.Close()
			return nil, err
		}
	}
	chain := generation.NewChain(providers, cfg.Generation.Timeout, logger)

	retriever := retrieval.New(index, embedder, retrieval.Config{
		TopK:              cfg.Retrieval.TopK,
		Overfetch:         cfg.Retrieval.Overfetch,
		GlobalConcurrency: cfg.Retrieval.GlobalConcurrency,
		PartitionTimeout:  cfg.Retrieval.PartitionTimeout,
	}, logger)

	split := splitter.New(
		splitter.WithChunkSize(cfg.Indexing.ChunkSize),
		splitter.WithOverlap(cfg.Indexing.ChunkOverlap),
	)

	return &App{
		Config:      cfg,
		Logger:      logger,
		Index:       index,
		Embedder:    embedder,
		Retriever:   retriever,
		Chain:       chain,
		RAG:         rag.NewService(retriever, chain, cfg.Retrieval.TopK, logger),
		Assessments: assessment.NewGenerator(retriever, chain, logger),
		Pipeline:    indexer.NewPipeline(split, embedder, index, indexer.Options{Dedup: cfg.Indexing.Dedup}, logger),
		Feedback:    feedback.NewStore(cfg.Feedback.Path),
	}, nil
}

func newIndex(cfg *config.Config, dimension int, logger *slog.Logger) (storage.Index, error) {
	switch cfg.VectorStore.Type {
	case config.BackendMemory:
		logger.Info("Using in-memory vector store", "dimension", dimension)
		return storage.NewMemoryIndex(dimension), nil
	default:
		store, err := storage.NewQdrantStorage(storage.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			Dimension:  dimension,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
		}
		return store, nil
	}
}

// Source returns the configured processed file source. A GitHub repository
// takes precedence over a local directory.
func (a *App) Source() (indexer.Source, error) {
	gh := a.Config.Indexing.GitHub
	if gh.Owner != "" && gh.Repo != "" {
		client, err := ghclient.NewClient(os.Getenv("GITHUB_TOKEN"))
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub client: %w", err)
		}
		return ghclient.NewFetcher(client, gh.Owner, gh.Repo, gh.Path), nil
	}
	if a.Config.Indexing.Dir != "" {
		return indexer.NewDirSource(a.Config.Indexing.Dir), nil
	}
	return nil, ErrNoSource
}

// IndexOnStartup fills an in-memory store from the configured source. Qdrant
// persists between runs and is indexed explicitly with the CLI.
func (a *App) IndexOnStartup(ctx context.Context) error {
	if a.Config.VectorStore.Type != config.BackendMemory {
		return nil
	}
	src, err := a.Source()
	if errors.Is(err, ErrNoSource) {
		a.Logger.Warn("In-memory vector store is empty and no source is configured")
		return nil
	}
	if err != nil {
		return err
	}

	result, err := a.Pipeline.IndexAll(ctx, src)
	if err != nil {
		return fmt.Errorf("startup indexing: %w", err)
	}
	a.Logger.Info("Startup indexing finished",
		"documents", result.SuccessfulDocs,
		"chunks", result.TotalChunks)
	return nil
}

// Close releases the vector store connection.
func (a *App) Close() error {
	return a.Index.Close()
}
