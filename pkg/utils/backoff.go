package utils

import (
	"math"
	"strings"
	"time"
)

// Backoff handles transient-failure detection and retry delay calculations.
type Backoff struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// NewBackoff creates a backoff handler with sensible defaults.
func NewBackoff() *Backoff {
	return &Backoff{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   60 * time.Second,
	}
}

func containsTransientPhrases(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "quota exceeded") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "service unavailable")
}

// IsTransientMessage checks if an error message indicates a transient failure.
// Providers often format transient conditions as bare status codes.
func IsTransientMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, code := range []string{"429", "408", "500", "502", "503", "504"} {
		if strings.Contains(lower, code) {
			return true
		}
	}
	return containsTransientPhrases(lower)
}

// Delay calculates exponential backoff delay for the given attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay * time.Duration(math.Pow(2, float64(attempt)))
	return b.capDelay(delay)
}

// capDelay ensures delay doesn't exceed maximum
func (b *Backoff) capDelay(delay time.Duration) time.Duration {
	if delay > b.MaxDelay {
		return b.MaxDelay
	}
	if delay < 0 {
		return b.BaseDelay
	}
	return delay
}

// ShouldRetry determines if we should retry based on attempt count
func (b *Backoff) ShouldRetry(attempt int) bool {
	return attempt < b.MaxRetries
}
