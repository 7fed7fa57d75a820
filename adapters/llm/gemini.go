package llm

import (
	"context"
	"fmt"

	"steward/ports"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel    = "gemini-1.5-flash"
	defaultEmbeddingModel = "text-embedding-004"
)

// Gemini wraps the Google generative AI SDK as both a text generator and
// the embedding source for case similarity.
type Gemini struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
}

// GeminiOption configures a Gemini provider.
type GeminiOption func(*Gemini)

// WithGeminiModel overrides the generation model.
func WithGeminiModel(name string) GeminiOption {
	return func(g *Gemini) { g.modelName = name }
}

// WithEmbeddingModel overrides the embedding model.
func WithEmbeddingModel(name string) GeminiOption {
	return func(g *Gemini) { g.embeddingModel = name }
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &Gemini{
		client:         client,
		modelName:      defaultGeminiModel,
		embeddingModel: defaultEmbeddingModel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Name identifies this provider in failover chains and embedding tags.
func (g *Gemini) Name() string { return "gemini" }

// Generate produces text for a prompt.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp)
}

// GenerateWithSystem produces text for a prompt under a system instruction.
func (g *Gemini) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	resp, err := model.GenerateContent(ctx, genai.Text(user))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return collectText(resp)
}

// Embed turns text into a provider-tagged vector.
func (g *Gemini) Embed(ctx context.Context, text string) (ports.Embedding, error) {
	em := g.client.EmbeddingModel(g.embeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return ports.Embedding{}, fmt.Errorf("gemini embed: %w", err)
	}
	if res.Embedding == nil {
		return ports.Embedding{}, fmt.Errorf("gemini embed: empty response")
	}
	values := make([]float64, len(res.Embedding.Values))
	for i, v := range res.Embedding.Values {
		values[i] = float64(v)
	}
	return ports.Embedding{Values: values, Provider: g.Name()}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error { return g.client.Close() }

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini generate: no candidates returned")
	}
	out := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			out += string(text)
		}
	}
	return out, nil
}
