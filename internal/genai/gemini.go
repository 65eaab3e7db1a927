package genai

import (
	"context"
	"errors"
	"fmt"

	googlegenai "google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the public endpoint, used against local fakes.
	BaseURL string
}

// Gemini calls a hosted Gemini model through the Gemini API backend.
type Gemini struct {
	client *googlegenai.Client
	model  string
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &googlegenai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: googlegenai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := googlegenai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, model: cfg.Model}, nil
}

// Generate forwards the prompt verbatim and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, googlegenai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// New returns a Gemini generator, or Disabled when no key is configured.
func New(ctx context.Context, cfg GeminiConfig) (Generator, error) {
	g, err := NewGemini(ctx, cfg)
	if errors.Is(err, ErrNotConfigured) {
		return Disabled{}, nil
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
