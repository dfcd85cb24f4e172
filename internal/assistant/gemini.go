// Package assistant wraps the Gemini-backed language model behind a small
// interface, plus the prompt construction and response parsing the dashboard
// features need (paper Q&A, summaries, keyword extraction, relevance
// judging).
package assistant

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator is the language-model surface the rest of the service depends
// on. Implemented by Gemini and by Mock for tests.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// Gemini generates text through the Gemini API. The API key lives only
// inside the genai client; it is never serialized or logged.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini client with the given API key.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate sends one prompt and returns the model's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

// Validate checks an API key by issuing a trivial generation call.
func Validate(ctx context.Context, apiKey string) bool {
	g, err := NewGemini(ctx, apiKey, "")
	if err != nil {
		return false
	}
	_, err = g.Generate(ctx, "Hello")
	return err == nil
}
