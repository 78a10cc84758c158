package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/codefionn/chatrelay/internal/securemem"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient implements the Client interface using the official OpenAI SDK.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates an OpenAI-backed completion client. The API key
// stays sealed; it is revealed only to construct the SDK client.
func NewOpenAIClient(apiKey *securemem.Secret, model string) (Client, error) {
	if apiKey.IsEmpty() {
		return nil, fmt.Errorf("openai client requires an API key")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}

	var client openai.Client
	apiKey.Reveal(func(key string) {
		client = openai.NewClient(option.WithAPIKey(key))
	})

	return &OpenAIClient{
		client: client,
		model:  model,
	}, nil
}

func (c *OpenAIClient) GetModelName() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// IsAvailable reports whether the client is configured. The hosted API's
// actual reachability is discovered by the completion call itself.
func (c *OpenAIClient) IsAvailable(ctx context.Context) bool {
	return true
}
