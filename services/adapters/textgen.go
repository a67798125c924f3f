package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sahilchouksey/module-enhancer/services/digitalocean"
	"google.golang.org/genai"
)

const (
	ProviderDigitalOcean = "digitalocean"
	ProviderGemini       = "gemini"
	ProviderClaude       = "claude"

	defaultGeminiModel = "gemini-2.5-flash"
	defaultClaudeModel = "claude-sonnet-4-5"
	defaultMaxTokens   = 4096
)

var ErrEmptyResponse = errors.New("empty response from text generator")

// TextGeneratorConfig selects and configures the text provider
type TextGeneratorConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// NewTextGenerator builds the generator for cfg.Provider
func NewTextGenerator(ctx context.Context, cfg TextGeneratorConfig) (TextGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is not configured", cfg.Provider)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTextTimeout
	}

	switch cfg.Provider {
	case ProviderDigitalOcean, "":
		return NewDigitalOceanGenerator(digitalocean.NewInferenceClient(digitalocean.InferenceConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}), cfg.Timeout), nil
	case ProviderGemini:
		return NewGeminiGenerator(ctx, cfg)
	case ProviderClaude:
		return NewClaudeGenerator(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported text provider %q", cfg.Provider)
	}
}

// DigitalOceanGenerator generates text through the DigitalOcean inference API
type DigitalOceanGenerator struct {
	client  *digitalocean.InferenceClient
	timeout time.Duration
}

func NewDigitalOceanGenerator(client *digitalocean.InferenceClient, timeout time.Duration) *DigitalOceanGenerator {
	return &DigitalOceanGenerator{client: client, timeout: timeout}
}

func (g *DigitalOceanGenerator) Generate(ctx context.Context, req TextRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	opts := []digitalocean.InferenceOption{
		digitalocean.WithInferenceTemperature(req.Temperature),
		digitalocean.WithInferenceMaxTokens(req.MaxTokens),
	}
	if req.JSON {
		opts = append(opts, digitalocean.WithResponseFormatJSON())
	}

	out, err := g.client.SimpleCompletion(ctx, req.System, req.Prompt, opts...)
	if err != nil {
		var apiErr *digitalocean.APIError
		if errors.As(err, &apiErr) {
			return "", newServiceError(ProviderDigitalOcean, apiErr.StatusCode, err)
		}
		return "", newServiceError(ProviderDigitalOcean, 0, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", newServiceError(ProviderDigitalOcean, 0, ErrEmptyResponse)
	}
	return out, nil
}

// GeminiGenerator generates text with the Gemini API
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiGenerator(ctx context.Context, cfg TextGeneratorConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req TextRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", newServiceError(ProviderGemini, 0, err)
	}

	// Use the first candidate that carries text
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", newServiceError(ProviderGemini, 0, ErrEmptyResponse)
	}
	return response.String(), nil
}

// ClaudeGenerator generates text with the Anthropic Messages API
type ClaudeGenerator struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
}

func NewClaudeGenerator(cfg TextGeneratorConfig) *ClaudeGenerator {
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeGenerator{
		client:  anthropic.NewClient(anthropicoption.WithAPIKey(cfg.APIKey)),
		model:   model,
		timeout: cfg.Timeout,
	}
}

func (g *ClaudeGenerator) Generate(ctx context.Context, req TextRequest) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	system := req.System
	if req.JSON {
		system = strings.TrimSpace(system + "\n\nRespond with valid JSON only. No markdown, no commentary.")
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", newServiceError(ProviderClaude, apiErr.StatusCode, err)
		}
		return "", newServiceError(ProviderClaude, 0, err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", newServiceError(ProviderClaude, 0, ErrEmptyResponse)
	}
	return response.String(), nil
}
