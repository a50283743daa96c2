// Package llm provides the completion client used by the optional
// extraction assistant: a Client interface, a Claude CLI-backed
// implementation, a mock for tests, and a retry wrapper.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is the interface for LLM completion providers.
type Client interface {
	// Complete performs a single completion request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream performs a streaming completion request. The channel is
	// closed when the response is complete or an error occurs.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// Error wraps a provider failure with the operation that produced it
// and whether a retry could succeed.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates a provider error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a provider error marked retryable.
func IsRetryable(err error) bool {
	var le *Error
	if !errors.As(err, &le) {
		return false
	}
	return le.Retryable
}
