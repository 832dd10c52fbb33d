// Package llm sends compiled prompts to a language model and normalizes
// failures into retryable and fatal classes.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Request is one completion request. JSONMode asks the provider to emit a
// single JSON object; Temperature and MaxTokens are passed through when set.
type Request struct {
	System      string
	User        string
	JSONMode    bool
	Temperature float64
	MaxTokens   int
}

// Provider produces a completion for a request. Implementations must honor
// context cancellation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// ErrNotConfigured is returned when no provider credentials are available.
// Callers surface this as a configuration problem, never retry it.
var ErrNotConfigured = errors.New("llm provider not configured")

// TransientError marks a failure worth retrying: rate limits, timeouts,
// connection trouble, provider 5xx responses.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix: bad credentials,
// malformed requests, a model that does not exist.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every retry attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("llm unavailable after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Client wraps a provider with bounded retries and exponential backoff.
type Client struct {
	Provider    Provider
	MaxAttempts int
	BackoffBase time.Duration
	MaxBackoff  time.Duration
	Logger      *zap.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient returns a client with the given retry policy.
func NewClient(p Provider, maxAttempts int, backoffBase time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		Provider:    p,
		MaxAttempts: maxAttempts,
		BackoffBase: backoffBase,
		MaxBackoff:  30 * time.Second,
		Logger:      logger,
		sleep:       sleepCtx,
	}
}

// Complete runs the request, retrying transient failures up to MaxAttempts
// with exponential backoff. Fatal errors and context cancellation return
// immediately.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.Provider == nil {
		return "", ErrNotConfigured
	}

	var last error
	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		out, err := c.Provider.Complete(ctx, req)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return "", err
		}
		last = err

		c.Logger.Warn("llm attempt failed",
			zap.String("provider", c.Provider.Name()),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.MaxAttempts),
			zap.Error(err))

		if attempt == c.MaxAttempts {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return "", err
		}
	}
	return "", &ExhaustedError{Attempts: c.MaxAttempts, Last: last}
}

// backoff returns base * 2^(attempt-1), capped at MaxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	if d > c.MaxBackoff {
		return c.MaxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
