package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bull/curriculum-rag/internal/config"
)

const rateLimitWindow = 20 * time.Second

// NewProvidersFromConfig builds the provider list in configured order. Providers
// whose API key variable is unset are skipped with a warning. It fails only
// when no provider could be built.
func NewProvidersFromConfig(ctx context.Context, cfgs []config.ProviderConfig, logger *slog.Logger) ([]Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var providers []Provider
	for _, pc := range cfgs {
		p, err := newProvider(ctx, pc)
		if err != nil {
			logger.Warn("Skipping generation provider",
				"provider", pc.Name,
				"kind", pc.Kind,
				"error", err)
			continue
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		return nil, errors.New("no generation provider is available; set at least one provider API key or configure ollama")
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info("Generation chain configured", "providers", names)

	return providers, nil
}

func newProvider(ctx context.Context, pc config.ProviderConfig) (Provider, error) {
	openaiCfg := OpenAIConfig{
		Name:        pc.Name,
		Model:       pc.Model,
		BaseURL:     pc.BaseURL,
		MaxTokens:   pc.MaxTokens,
		Temperature: pc.Temperature,
		RetryWindow: rateLimitWindow,
	}

	switch pc.Kind {
	case config.ProviderOllama:
		return NewOllamaProvider(openaiCfg), nil

	case config.ProviderOpenAI, config.ProviderOpenRouter:
		key, err := apiKey(pc.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		openaiCfg.APIKey = key
		if pc.Kind == config.ProviderOpenRouter {
			return NewOpenRouterProvider(openaiCfg), nil
		}
		return NewOpenAIProvider(openaiCfg), nil

	case config.ProviderGemini:
		key, err := apiKey(pc.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		return NewGeminiProvider(ctx, GeminiConfig{
			Name:        pc.Name,
			Model:       pc.Model,
			APIKey:      key,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
			BaseURL:     pc.BaseURL,
		})

	default:
		return nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
	}
}

func apiKey(env string) (string, error) {
	if env == "" {
		return "", errors.New("api_key_env is not set")
	}
	key := os.Getenv(env)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", env)
	}
	return key, nil
}
