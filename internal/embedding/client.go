package embedding

import (
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultAPIKeyEnv is the environment variable holding the embedding API key.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// ClientConfig selects the OpenAI-compatible embeddings endpoint.
type ClientConfig struct {
	// BaseURL overrides the API endpoint, e.g. for a local OpenAI-compatible server.
	BaseURL string
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv string
}

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client for embedding generation.
// It returns an error if the configured API key variable is not set.
func NewClient(cfg ClientConfig) (*Client, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}

	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", keyEnv)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// Retries are driven by our own backoff policy
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client.
func (c *Client) Client() *openai.Client {
	return c.client
}
