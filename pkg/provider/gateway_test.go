package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specdrive/specdrive/pkg/utils"
)

// fakeGateway returns scripted results in order, then repeats the last.
type fakeGateway struct {
	name    string
	results []error
	calls   int
}

func (f *fakeGateway) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (*Result, error) {
	idx := f.calls
	f.calls++
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	if err := f.results[idx]; err != nil {
		return nil, err
	}
	return &Result{Content: "ok", Provider: f.name}, nil
}

func newTestRetrying(primary, fallback Gateway) (*Retrying, *[]time.Duration) {
	var slept []time.Duration
	r := NewRetrying(primary, fallback, nil)
	r.Backoff = &utils.Backoff{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestRetryingSucceedsFirstTry(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{nil}}
	r, slept := newTestRetrying(primary, nil)

	res, err := r.Generate(context.Background(), "sys", "user", Options{})
	require.NoError(t, err)
	assert.Equal(t, "primary", res.Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Empty(t, *slept)
}

func TestRetryingRecoversFromTransient(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&TransientError{Cause: errors.New("429 rate limit")},
		&TransientError{Cause: errors.New("503")},
		nil,
	}}
	r, slept := newTestRetrying(primary, nil)

	res, err := r.Generate(context.Background(), "sys", "user", Options{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)
	assert.Equal(t, 3, primary.calls)

	// Exponential, capped delays.
	require.Len(t, *slept, 2)
	assert.Equal(t, 10*time.Millisecond, (*slept)[0])
	assert.Equal(t, 20*time.Millisecond, (*slept)[1])
}

func TestRetryingFatalNotRetried(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&FatalError{Cause: errors.New("401 invalid key")},
	}}
	fallback := &fakeGateway{name: "fallback", results: []error{nil}}
	r, slept := newTestRetrying(primary, fallback)

	_, err := r.Generate(context.Background(), "sys", "user", Options{})
	require.Error(t, err)

	var fatal *FatalError
	assert.True(t, errors.As(err, &fatal))
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not see fatal errors")
	assert.Empty(t, *slept)
}

func TestRetryingFallsBackAfterExhaustion(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&TransientError{Cause: errors.New("timeout")},
	}}
	fallback := &fakeGateway{name: "fallback", results: []error{nil}}
	r, _ := newTestRetrying(primary, fallback)

	res, err := r.Generate(context.Background(), "sys", "user", Options{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", res.Provider)

	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, 4, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestRetryingNoFallbackSurfacesLastError(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&TransientError{Cause: errors.New("connection reset")},
	}}
	r, _ := newTestRetrying(primary, nil)

	_, err := r.Generate(context.Background(), "sys", "user", Options{})
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 4, primary.calls)
}

func TestRetryingHonorsCancellation(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&TransientError{Cause: errors.New("503")},
	}}
	r, _ := newTestRetrying(primary, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Generate(ctx, "sys", "user", Options{})
	require.Error(t, err)
	// One attempt, then the cancelled context stops the retry loop.
	assert.Equal(t, 1, primary.calls)
}

func TestRetryingCancellationInterruptsBackoff(t *testing.T) {
	primary := &fakeGateway{name: "primary", results: []error{
		&TransientError{Cause: errors.New("503")},
	}}
	r := NewRetrying(primary, nil, nil)
	r.Backoff = &utils.Backoff{MaxRetries: 3, BaseDelay: 10 * time.Second, MaxDelay: 60 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := r.Generate(ctx, "sys", "user", Options{})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, elapsed, 5*time.Second, "cancellation must not wait out the backoff delay")
	assert.Equal(t, 1, primary.calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&TransientError{Cause: errors.New("whatever")}, true},
		{&FatalError{Cause: errors.New("429")}, false}, // explicit wins over message
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{errors.New("provider error 503: unavailable"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
