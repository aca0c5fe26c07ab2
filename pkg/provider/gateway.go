// Package provider defines the single abstract generation operation the
// pipeline depends on. Routing among concrete backends is external
// policy; the core only requires that transient failures are retried
// with increasing backoff a bounded number of times before falling back
// to an alternate implementation, and that non-transient failures are
// surfaced immediately.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specdrive/specdrive/pkg/utils"
)

// Options bound one generation call.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds the whole call; exceeding it counts as transient.
	Timeout time.Duration
}

// Result is the provider's response to one generation call.
type Result struct {
	Content  string `json:"content"`
	Tokens   int    `json:"tokens"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Gateway is the one operation the core depends on.
type Gateway interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Result, error)
}

// TransientError marks a network/timeout-class failure eligible for
// retry and fallback.
type TransientError struct{ Cause error }

func (e *TransientError) Error() string { return fmt.Sprintf("transient provider error: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

// FatalError marks an authentication/invalid-request-class failure that
// is surfaced immediately, never retried.
type FatalError struct{ Cause error }

func (e *FatalError) Error() string { return fmt.Sprintf("fatal provider error: %v", e.Cause) }
func (e *FatalError) Unwrap() error { return e.Cause }

// IsTransient classifies an error for retry purposes. Explicit
// classifications win; unclassified errors are inspected by message
// since providers often format transient conditions as bare status
// codes.
func IsTransient(err error) bool {
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return false
	}
	var transient *TransientError
	if errors.As(err, &transient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return utils.IsTransientMessage(err.Error())
}

// Retrying wraps a primary gateway with bounded retry, increasing
// backoff, and optional fallback to a secondary gateway.
type Retrying struct {
	Primary  Gateway
	Fallback Gateway // may be nil
	Backoff  *utils.Backoff
	Logger   *utils.Logger

	// sleep is overridable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes
// first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NewRetrying builds a retrying gateway with default backoff.
func NewRetrying(primary, fallback Gateway, logger *utils.Logger) *Retrying {
	return &Retrying{
		Primary:  primary,
		Fallback: fallback,
		Backoff:  utils.NewBackoff(),
		Logger:   logger,
		sleep:    sleepCtx,
	}
}

// Generate calls the primary gateway, retrying transient failures with
// increasing delays. Once retries are exhausted the fallback gateway, if
// configured, gets one attempt with the same arguments. Fatal errors
// short-circuit immediately.
func (r *Retrying) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Result, error) {
	callCtx := ctx
	var cancel context.CancelFunc

	var lastErr error
	for attempt := 0; ; attempt++ {
		if opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		}
		result, err := r.Primary.Generate(callCtx, systemPrompt, userPrompt, opts)
		if cancel != nil {
			cancel()
			cancel = nil
		}
		if err == nil {
			return result, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if !r.Backoff.ShouldRetry(attempt) {
			break
		}
		delay := r.Backoff.Delay(attempt)
		if r.Logger != nil {
			r.Logger.Logf("provider call failed (attempt %d): %v; retrying in %s", attempt+1, err, delay)
		}
		// Cancellation aborts the backoff wait immediately.
		if err := r.sleep(ctx, delay); err != nil {
			return nil, &TransientError{Cause: err}
		}
	}

	if r.Fallback != nil {
		if r.Logger != nil {
			r.Logger.Logf("primary provider exhausted retries; falling back: %v", lastErr)
		}
		if opts.Timeout > 0 {
			fbCtx, fbCancel := context.WithTimeout(ctx, opts.Timeout)
			defer fbCancel()
			return r.Fallback.Generate(fbCtx, systemPrompt, userPrompt, opts)
		}
		return r.Fallback.Generate(ctx, systemPrompt, userPrompt, opts)
	}
	return nil, lastErr
}
