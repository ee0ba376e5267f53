// Package config loads the service configuration from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds accepted in generation.providers.
const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
)

// Server transports.
const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

// Vector store backends.
const (
	BackendQdrant = "qdrant"
	BackendMemory = "memory"
)

// QdrantConfig contains connection details for the Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// VectorStoreConfig selects the index implementation.
type VectorStoreConfig struct {
	Type string `yaml:"type"`
}

// EmbeddingConfig selects the embedding model. Indexing and querying share it.
type EmbeddingConfig struct {
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	BatchSize int           `yaml:"batch_size"`
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// RetrievalConfig tunes scoped and global search.
type RetrievalConfig struct {
	TopK              int           `yaml:"top_k"`
	Overfetch         int           `yaml:"overfetch"`
	GlobalConcurrency int           `yaml:"global_concurrency"`
	PartitionTimeout  time.Duration `yaml:"partition_timeout"`
}

// ProviderConfig describes one entry of the generation chain.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"`
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// GenerationConfig lists providers in priority order.
type GenerationConfig struct {
	Timeout   time.Duration    `yaml:"timeout"`
	Providers []ProviderConfig `yaml:"providers"`
}

// GitHubSourceConfig points at a repository of processed page files.
type GitHubSourceConfig struct {
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Path  string `yaml:"path"`
}

// IndexingConfig controls chunking and where processed files are read from.
type IndexingConfig struct {
	ChunkSize    int                `yaml:"chunk_size"`
	ChunkOverlap int                `yaml:"chunk_overlap"`
	Dedup        bool               `yaml:"dedup"`
	Dir          string             `yaml:"dir"`
	GitHub       GitHubSourceConfig `yaml:"github"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

// FeedbackConfig sets where answer ratings are appended.
type FeedbackConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config is the root configuration.
type Config struct {
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Qdrant      QdrantConfig      `yaml:"qdrant"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Generation  GenerationConfig  `yaml:"generation"`
	Indexing    IndexingConfig    `yaml:"indexing"`
	Server      ServerConfig      `yaml:"server"`
	Feedback    FeedbackConfig    `yaml:"feedback"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from path, applies environment overrides and defaults,
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	applyConfigDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	var cfg Config
	applyConfigDefaults(&cfg)
	return &cfg
}

// DefaultProviders is the chain order used when none is configured. The
// locally hosted Ollama model comes last.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Kind: ProviderOpenRouter, Name: "openrouter", Model: "qwen/qwen3-4b:free", APIKeyEnv: "OPENROUTER_API_KEY", MaxTokens: 1000, Temperature: 0.7},
		{Kind: ProviderGemini, Name: "gemini", Model: "gemini-2.5-flash", APIKeyEnv: "GOOGLE_API_KEY"},
		{Kind: ProviderOpenAI, Name: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"},
		{Kind: ProviderOllama, Name: "ollama", Model: getEnv("OLLAMA_MODEL", "qwen2.5"), BaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434")},
	}
}

func applyConfigDefaults(cfg *Config) {
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = BackendQdrant
	}

	if cfg.Qdrant.Host == "" {
		cfg.Qdrant.Host = "localhost"
	}
	if cfg.Qdrant.Port == 0 {
		cfg.Qdrant.Port = 6334
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = "curriculum"
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimension == 0 {
		cfg.Embedding.Dimension = 1536
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 500
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1024
	}
	if cfg.Embedding.CacheTTL == 0 {
		cfg.Embedding.CacheTTL = time.Hour
	}

	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Retrieval.Overfetch == 0 {
		cfg.Retrieval.Overfetch = 2
	}
	if cfg.Retrieval.GlobalConcurrency == 0 {
		cfg.Retrieval.GlobalConcurrency = 4
	}
	if cfg.Retrieval.PartitionTimeout == 0 {
		cfg.Retrieval.PartitionTimeout = 5 * time.Second
	}

	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 60 * time.Second
	}
	if len(cfg.Generation.Providers) == 0 {
		cfg.Generation.Providers = DefaultProviders()
	}
	for i := range cfg.Generation.Providers {
		p := &cfg.Generation.Providers[i]
		if p.Name == "" {
			p.Name = p.Kind
		}
	}

	if cfg.Indexing.ChunkSize == 0 {
		cfg.Indexing.ChunkSize = 1000
	}
	if cfg.Indexing.ChunkOverlap == 0 {
		cfg.Indexing.ChunkOverlap = 100
	}
	if cfg.Indexing.GitHub.Path == "" {
		cfg.Indexing.GitHub.Path = "data/processed"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = ModeStdio
	}

	if cfg.Feedback.Path == "" {
		cfg.Feedback.Path = "data/feedback.jsonl"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.VectorStore.Type = getEnv("VECTOR_STORE", cfg.VectorStore.Type)
	cfg.Qdrant.Host = getEnv("QDRANT_HOST", cfg.Qdrant.Host)
	cfg.Qdrant.Port = getEnvInt("QDRANT_PORT", cfg.Qdrant.Port)
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.Collection = getEnv("QDRANT_COLLECTION", cfg.Qdrant.Collection)
	cfg.Embedding.Model = getEnv("EMBEDDING_MODEL", cfg.Embedding.Model)
	cfg.Embedding.Dimension = getEnvInt("EMBEDDING_DIMENSION", cfg.Embedding.Dimension)
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Mode = getEnv("SERVER_MODE", cfg.Server.Mode)
	cfg.Feedback.Path = getEnv("FEEDBACK_PATH", cfg.Feedback.Path)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.VectorStore.Type {
	case BackendQdrant, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("vector_store.type: unknown backend %q", c.VectorStore.Type))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Indexing.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("indexing.chunk_size must be positive, got %d", c.Indexing.ChunkSize))
	}
	if c.Indexing.ChunkOverlap < 0 || c.Indexing.ChunkOverlap >= c.Indexing.ChunkSize {
		errs = append(errs, fmt.Errorf("indexing.chunk_overlap must be in [0, chunk_size), got %d", c.Indexing.ChunkOverlap))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be at least 1, got %d", c.Retrieval.TopK))
	}
	if c.Retrieval.Overfetch < 1 {
		errs = append(errs, fmt.Errorf("retrieval.overfetch must be at least 1, got %d", c.Retrieval.Overfetch))
	}
	if len(c.Generation.Providers) == 0 {
		errs = append(errs, errors.New("generation.providers must not be empty"))
	}
	for i, p := range c.Generation.Providers {
		switch p.Kind {
		case ProviderOpenAI, ProviderOpenRouter, ProviderGemini, ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("generation.providers[%d]: unknown kind %q", i, p.Kind))
		}
	}
	switch c.Server.Mode {
	case ModeStdio, ModeHTTP:
	default:
		errs = append(errs, fmt.Errorf("server.mode must be stdio or http, got %q", c.Server.Mode))
	}

	return errors.Join(errs...)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as int or returns a default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
