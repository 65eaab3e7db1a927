package genai

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured = errors.New("generative model is not configured")
	ErrEmptyReply    = errors.New("model returned no text")
)

// Generator turns a prompt into a text completion.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled answers every prompt with ErrNotConfigured. It stands in when no API key is set.
type Disabled struct{}

func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
