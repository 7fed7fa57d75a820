package ports

import "context"

// Embedding is a provider-tagged embedding vector. Vectors from different
// providers live in different spaces and must never be compared.
type Embedding struct {
	Values   []float64
	Provider string
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (Embedding, error)
}

// Generator produces free text from a prompt. The engine treats generation
// as an opaque capability; prompt construction lives with the caller.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateWithSystem(ctx context.Context, system, user string) (string, error)
}

// Provider bundles both capabilities with a stable name for failover chains.
type Provider interface {
	Name() string
	Generator
}
