package llm

import (
	"context"
	"fmt"

	"steward/domain/core"
	"steward/ports"

	"github.com/rs/zerolog"
)

// Chain tries each provider in order until one answers. A provider failing
// is logged and skipped; the chain only fails when every link does.
type Chain struct {
	providers []ports.Provider
	log       zerolog.Logger
}

// NewChain builds a failover chain. Order is priority order.
func NewChain(log zerolog.Logger, providers ...ports.Provider) *Chain {
	return &Chain{providers: providers, log: log}
}

// Name identifies the chain itself when it is nested in another chain.
func (c *Chain) Name() string { return "failover" }

// Providers returns the chain's members in priority order.
func (c *Chain) Providers() []ports.Provider {
	out := make([]ports.Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// Generate asks each provider in turn for a completion.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	return c.attempt(ctx, func(ctx context.Context, p ports.Provider) (string, error) {
		return p.Generate(ctx, prompt)
	})
}

// GenerateWithSystem asks each provider in turn, preserving the system
// instruction.
func (c *Chain) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	return c.attempt(ctx, func(ctx context.Context, p ports.Provider) (string, error) {
		return p.GenerateWithSystem(ctx, system, user)
	})
}

func (c *Chain) attempt(ctx context.Context, call func(context.Context, ports.Provider) (string, error)) (string, error) {
	if len(c.providers) == 0 {
		return "", core.ErrAllProvidersFailed
	}

	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := call(ctx, p)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.Warn().
			Str("provider", p.Name()).
			Err(err).
			Msg("provider failed, trying next in chain")
	}
	return "", fmt.Errorf("%w: last error: %v", core.ErrAllProvidersFailed, lastErr)
}
