package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/codefionn/chatrelay/internal/securemem"
)

const (
	defaultAnthropicModel     = "claude-3-5-haiku-20241022"
	defaultAnthropicMaxTokens = 1024
)

// AnthropicClient implements the Client interface using the official
// Anthropic SDK.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates an Anthropic-backed completion client. The API
// key stays sealed; it is revealed only to construct the SDK client.
func NewAnthropicClient(apiKey *securemem.Secret, model string) (Client, error) {
	if apiKey.IsEmpty() {
		return nil, fmt.Errorf("anthropic client requires an API key")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultAnthropicModel
	}

	var client anthropic.Client
	apiKey.Reveal(func(key string) {
		client = anthropic.NewClient(option.WithAPIKey(key))
	})

	return &AnthropicClient{
		client: client,
		model:  model,
	}, nil
}

func (c *AnthropicClient) GetModelName() string {
	return c.model
}

func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// IsAvailable reports whether the client is configured. The hosted API's
// actual reachability is discovered by the completion call itself.
func (c *AnthropicClient) IsAvailable(ctx context.Context) bool {
	return true
}
