package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/nir-meir/prd-to-json/pkg/prdflow/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssistant_Generate(t *testing.T) {
	mock := llm.NewMockClient(`{"features": []}`)
	assistant := llm.NewAssistant(mock)

	out, err := assistant.Generate(context.Background(), "Extract features.", "# Agent\n\nSome PRD text.")
	require.NoError(t, err)
	assert.Equal(t, `{"features": []}`, out)

	// The prompt rides in the system prompt, the document in the user turn.
	call := mock.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "Extract features.", call.SystemPrompt)
	require.Len(t, call.Messages, 1)
	assert.Equal(t, llm.RoleUser, call.Messages[0].Role)
	assert.Contains(t, call.Messages[0].Content, "Some PRD text.")
}

func TestAssistant_GenerateError(t *testing.T) {
	mock := llm.NewMockClient("").WithError(errors.New("backend down"))
	assistant := llm.NewAssistant(mock)

	_, err := assistant.Generate(context.Background(), "prompt", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend down")
}

func TestAssistant_ModelOverride(t *testing.T) {
	mock := llm.NewMockClient("ok")
	assistant := llm.NewAssistant(mock, llm.AssistantModel("claude-3-haiku"))

	_, err := assistant.Generate(context.Background(), "prompt", "text")
	require.NoError(t, err)

	call := mock.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "claude-3-haiku", call.Model)
}
