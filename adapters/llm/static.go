package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"steward/ports"
)

const staticEmbeddingDim = 64

// Static is an offline provider: deterministic hash-based embeddings and a
// fixed analysis string. It keeps the engine fully functional when no API
// key is configured and gives tests a provider with stable output.
type Static struct {
	analysis string
}

// NewStatic creates an offline provider. An empty analysis gets a generic
// placeholder.
func NewStatic(analysis string) *Static {
	if analysis == "" {
		analysis = "Heuristic analysis only; no language model configured."
	}
	return &Static{analysis: analysis}
}

// Name identifies this provider in failover chains and embedding tags.
func (s *Static) Name() string { return "static" }

// Generate returns the fixed analysis text.
func (s *Static) Generate(ctx context.Context, prompt string) (string, error) {
	return s.analysis, nil
}

// GenerateWithSystem returns the fixed analysis text.
func (s *Static) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	return s.analysis, nil
}

// Embed hashes the text into a fixed-length vector. Identical text always
// embeds identically, so cached similarity rankings stay stable.
func (s *Static) Embed(ctx context.Context, text string) (ports.Embedding, error) {
	// Each 32-byte hash block yields 16 dimensions; the block counter
	// keeps the dimensions independent.
	values := make([]float64, 0, staticEmbeddingDim)
	for block := 0; len(values) < staticEmbeddingDim; block++ {
		sum := sha256.Sum256(append([]byte(text), byte(block)))
		for i := 0; i+1 < len(sum) && len(values) < staticEmbeddingDim; i += 2 {
			raw := binary.BigEndian.Uint16(sum[i : i+2])
			values = append(values, float64(raw)/32768.0-1.0)
		}
	}
	return ports.Embedding{Values: values, Provider: s.Name()}, nil
}
