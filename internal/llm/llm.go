// Package llm abstracts the reasoning backend behind a two-call interface so
// generators stay testable with a fake.
package llm

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"tasknode/internal/domain"
)

// Client is the reasoning surface generators depend on.
type Client interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// Gemini calls the Gemini API.
type Gemini struct {
	client *genai.Client
	log    *zap.Logger
}

// NewGemini creates a Gemini-backed client. The API key comes from config or
// the GEMINI_API_KEY environment variable when empty.
func NewGemini(ctx context.Context, apiKey string, log *zap.Logger) (*Gemini, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, domain.InfrastructureError{Op: "llm.client", Err: err}
	}
	return &Gemini{client: client, log: log}, nil
}

func (g *Gemini) Complete(ctx context.Context, model, prompt string) (string, error) {
	return g.generate(ctx, model, "", prompt)
}

func (g *Gemini) CompleteWithSystem(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	return g.generate(ctx, model, systemPrompt, userPrompt)
}

func (g *Gemini) generate(ctx context.Context, model, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(user), cfg)
	if err != nil {
		g.log.Warn("generate content failed", zap.String("model", model), zap.Error(err))
		return "", domain.InfrastructureError{Op: "llm.generate", Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	g.log.Debug("generate content", zap.String("model", model), zap.Int("response_chars", len(text)))
	return text, nil
}
