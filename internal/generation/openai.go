package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	ollamaBaseURL     = "http://localhost:11434"
)

// OpenAIConfig configures a chat-completions provider. Any OpenAI-compatible
// endpoint works, including OpenRouter and Ollama.
type OpenAIConfig struct {
	Name        string
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
	// Headers are added to every request.
	Headers map[string]string
	// RetryWindow bounds backoff on rate limit errors. Zero disables retries.
	RetryWindow time.Duration
}

// OpenAIProvider generates answers with the chat completions API.
type OpenAIProvider struct {
	client      openai.Client
	name        string
	model       string
	maxTokens   int
	temperature float64
	retryWindow time.Duration
}

// NewOpenAIProvider creates a chat-completions provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	name := cfg.Name
	if name == "" {
		name = "openai"
	}

	return &OpenAIProvider{
		client:      openai.NewClient(opts...),
		name:        name,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		retryWindow: cfg.RetryWindow,
	}
}

// NewOpenRouterProvider creates a provider for the OpenRouter gateway.
func NewOpenRouterProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openrouter"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterBaseURL
	}
	headers := map[string]string{
		"HTTP-Referer": "http://localhost:3000",
		"X-Title":      "Curriculum RAG",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	cfg.Headers = headers
	return NewOpenAIProvider(cfg)
}

// NewOllamaProvider creates a provider for a locally hosted Ollama server
// through its OpenAI-compatible endpoint. No API key is required.
func NewOllamaProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "ollama"
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = ollamaBaseURL
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	cfg.BaseURL = base
	if cfg.APIKey == "" {
		cfg.APIKey = "ollama"
	}
	return NewOpenAIProvider(cfg)
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

// Generate sends prompt as a single user message.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(p.model),
	}
	if p.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.maxTokens))
	}
	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	var text string
	operation := func() error {
		resp, err := p.client.Chat.Completions.New(ctx, params)
		if err != nil {
			if isRateLimitError(err) && p.retryWindow > 0 {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyResponse)
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = p.retryWindow

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", fmt.Errorf("%s chat completion failed: %w", p.name, err)
	}
	return text, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
