package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures the retry wrapper.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64
}

// DefaultRetry is the standard retry configuration.
var DefaultRetry = RetryConfig{
	MaxAttempts:    3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = RetryConfig{
	MaxAttempts: 1,
}

// retryClient wraps a Client and retries transient Complete failures.
type retryClient struct {
	inner Client
	cfg   RetryConfig
	sleep func(time.Duration)
}

// WithRetries wraps client so Complete retries errors marked retryable,
// with exponential backoff. Stream calls pass through unwrapped.
func WithRetries(client Client, cfg RetryConfig) Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &retryClient{inner: client, cfg: cfg, sleep: time.Sleep}
}

func (r *retryClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.cfg.MaxAttempts-1 {
			break
		}

		r.sleep(r.jittered(backoff))
		backoff = time.Duration(float64(backoff) * r.cfg.BackoffFactor)
		if r.cfg.MaxBackoff > 0 && backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return nil, lastErr
}

func (r *retryClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	return r.inner.Stream(ctx, req)
}

func (r *retryClient) jittered(d time.Duration) time.Duration {
	if r.cfg.Jitter <= 0 || d <= 0 {
		return d
	}
	delta := rand.Float64()*2 - 1 // [-1, 1)
	return d + time.Duration(float64(d)*r.cfg.Jitter*delta)
}
