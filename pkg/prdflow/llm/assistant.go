package llm

import (
	"context"
	"fmt"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/extract"
)

// Assistant adapts a Client to the extraction assistant contract: a
// single prompt plus document text in, raw model output back.
type Assistant struct {
	client Client
	model  string
}

// AssistantOption configures Assistant.
type AssistantOption func(*Assistant)

// AssistantModel overrides the model used for assistant calls.
func AssistantModel(model string) AssistantOption {
	return func(a *Assistant) { a.model = model }
}

// NewAssistant wraps client for use as an extraction assistant.
func NewAssistant(client Client, opts ...AssistantOption) *Assistant {
	a := &Assistant{client: client}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

var _ extract.Assistant = (*Assistant)(nil)

// Generate implements extract.Assistant.
func (a *Assistant) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	resp, err := a.client.Complete(ctx, CompletionRequest{
		SystemPrompt: prompt,
		Messages: []Message{
			{Role: RoleUser, Content: contextText},
		},
		Model: a.model,
	})
	if err != nil {
		return "", fmt.Errorf("assistant completion: %w", err)
	}
	return resp.Content, nil
}
