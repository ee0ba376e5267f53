package generation

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	Name        string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// GeminiProvider generates answers with the Gemini API and accepts image input.
type GeminiProvider struct {
	client *genai.Client
	name   string
	model  string
	config *genai.GenerateContentConfig
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is empty")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	name := cfg.Name
	if name == "" {
		name = "gemini"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	genCfg := &genai.GenerateContentConfig{}
	if cfg.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if cfg.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(cfg.Temperature))
	}

	return &GeminiProvider{
		client: client,
		name:   name,
		model:  model,
		config: genCfg,
	}, nil
}

func (p *GeminiProvider) Name() string {
	return p.name
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), p.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate failed: %w", err)
	}
	return resp.Text(), nil
}

// GenerateFromImage sends the prompt and the inline image in one user turn.
func (p *GeminiProvider) GenerateFromImage(ctx context.Context, prompt string, img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("image is empty")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/png"
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(img.Data, mime),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.config)
	if err != nil {
		return "", fmt.Errorf("gemini vision generate failed: %w", err)
	}
	return resp.Text(), nil
}
