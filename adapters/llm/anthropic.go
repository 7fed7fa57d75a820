package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultAnthropicModel     = "claude-sonnet-4-20250514"
	defaultAnthropicMaxTokens = 2048
)

// Anthropic wraps the Claude messages API as a text generator for grievance
// analysis prompts.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// AnthropicOption configures an Anthropic provider.
type AnthropicOption func(*Anthropic)

// WithAnthropicModel overrides the generation model.
func WithAnthropicModel(name string) AnthropicOption {
	return func(a *Anthropic) { a.model = anthropic.Model(name) }
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) AnthropicOption {
	return func(a *Anthropic) { a.maxTokens = n }
}

// NewAnthropic creates a Claude-backed provider.
func NewAnthropic(apiKey string, opts ...AnthropicOption) *Anthropic {
	a := &Anthropic{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     anthropic.Model(defaultAnthropicModel),
		maxTokens: defaultAnthropicMaxTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name identifies this provider in failover chains.
func (a *Anthropic) Name() string { return "anthropic" }

// Generate produces text for a prompt.
func (a *Anthropic) Generate(ctx context.Context, prompt string) (string, error) {
	return a.send(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
}

// GenerateWithSystem produces text for a prompt under a system instruction.
func (a *Anthropic) GenerateWithSystem(ctx context.Context, system, user string) (string, error) {
	return a.send(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
}

func (a *Anthropic) send(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
