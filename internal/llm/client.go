// Package llm wraps the external text-generation collaborators the AI rooms
// talk to. Unavailability and failures are reported as errors and treated by
// callers as "no bot reply this turn", never surfaced to chat users.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/chatrelay/internal/securemem"
)

// Client is the interface for completion backends.
type Client interface {
	// Complete sends a single prompt and returns the generated text.
	Complete(ctx context.Context, prompt string) (string, error)

	// IsAvailable probes whether the backend can serve requests right now.
	IsAvailable(ctx context.Context) bool

	// GetModelName returns the model identifier.
	GetModelName() string
}

// New constructs the configured completion client. API keys are sealed into
// locked memory immediately; the plain strings read from config should not
// be reused afterwards.
func New(provider, model, ollamaURL, openaiKey, anthropicKey string) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "ollama":
		return NewOllamaClient(ollamaURL, model)
	case "openai":
		return NewOpenAIClient(securemem.NewSecret(strings.TrimSpace(openaiKey)), model)
	case "anthropic":
		return NewAnthropicClient(securemem.NewSecret(strings.TrimSpace(anthropicKey)), model)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
}
