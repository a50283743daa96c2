package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a Client for tests and dry runs. It returns canned
// responses and records every request it receives.
type MockClient struct {
	mu sync.Mutex

	response     string
	responses    []string
	next         int
	err          error
	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls holds every request, in order.
	Calls []CompletionRequest
}

// NewMockClient creates a mock that always returns response.
func NewMockClient(response string) *MockClient {
	return &MockClient{response: response}
}

// WithResponses makes the mock cycle through responses in order.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.responses = responses
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.err = err
	return m
}

// WithCompleteFunc overrides Complete entirely.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.completeFunc = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	if m.completeFunc != nil {
		fn := m.completeFunc
		m.mu.Unlock()
		return fn(ctx, req)
	}
	content := m.response
	if len(m.responses) > 0 {
		content = m.responses[m.next%len(m.responses)]
		m.next++
	}
	m.mu.Unlock()

	inputTokens := 0
	for _, msg := range req.Messages {
		inputTokens += approxTokens(msg.Content)
	}
	inputTokens += approxTokens(req.SystemPrompt)
	outputTokens := approxTokens(content)

	return &CompletionResponse{
		Content:      content,
		FinishReason: "stop",
		Model:        "mock",
		Usage: TokenUsage{
			InputTokens:  inputTokens,
			OutputTokens: outputTokens,
			TotalTokens:  inputTokens + outputTokens,
		},
	}, nil
}

// Stream implements Client. The whole response arrives as one chunk.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	resp, err := m.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 1)
	usage := resp.Usage
	ch <- StreamChunk{Content: resp.Content, Done: true, Usage: &usage}
	close(ch)
	return ch, nil
}

// CallCount returns the number of requests received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil if none was made.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return &m.Calls[len(m.Calls)-1]
}

// Reset clears recorded calls and restarts the response cycle.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}

// approxTokens gives a rough token estimate (1 token ~ 4 chars, at
// least one per non-empty input).
func approxTokens(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}
