package llm

import (
	"context"
	"errors"
	"testing"

	"steward/domain/core"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	name   string
	output string
	err    error
	calls  int
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Generate(ctx context.Context, prompt string) (string, error) {
	p.calls++
	return p.output, p.err
}

func (p *scriptedProvider) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	p.calls++
	return p.output, p.err
}

func TestChain_FirstProviderWins(t *testing.T) {
	primary := &scriptedProvider{name: "primary", output: "from primary"}
	backup := &scriptedProvider{name: "backup", output: "from backup"}
	chain := NewChain(zerolog.Nop(), primary, backup)

	got, err := chain.Generate(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, "from primary", got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, backup.calls)
}

func TestChain_FailsOverToNextProvider(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: errors.New("rate limited")}
	backup := &scriptedProvider{name: "backup", output: "from backup"}
	chain := NewChain(zerolog.Nop(), primary, backup)

	got, err := chain.Generate(context.Background(), "prompt")
	require.NoError(t, err)

	assert.Equal(t, "from backup", got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, backup.calls)
}

func TestChain_AllProvidersFailing(t *testing.T) {
	chain := NewChain(zerolog.Nop(),
		&scriptedProvider{name: "a", err: errors.New("down")},
		&scriptedProvider{name: "b", err: errors.New("also down")},
	)

	_, err := chain.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, core.ErrAllProvidersFailed)
	assert.Contains(t, err.Error(), "also down")
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain(zerolog.Nop())
	_, err := chain.Generate(context.Background(), "prompt")
	assert.ErrorIs(t, err, core.ErrAllProvidersFailed)
}

func TestChain_StopsOnCancelledContext(t *testing.T) {
	provider := &scriptedProvider{name: "a", output: "ok"}
	chain := NewChain(zerolog.Nop(), provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.Generate(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, provider.calls)
}

func TestChain_GenerateWithSystemFailsOver(t *testing.T) {
	primary := &scriptedProvider{name: "primary", err: errors.New("down")}
	backup := &scriptedProvider{name: "backup", output: "system-aware answer"}
	chain := NewChain(zerolog.Nop(), primary, backup)

	got, err := chain.GenerateWithSystem(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "system-aware answer", got)
}
