// Package retry provides backoff algorithm implementations
package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/jzx17/gohttp/pkg/types"
)

// MaxJitter bounds the random noise added to every backoff interval
const MaxJitter = 100 * time.Millisecond

// JitterFunc returns the noise added to one backoff interval
type JitterFunc func() time.Duration

// DefaultJitter is uniform in [0, MaxJitter) with microsecond resolution
func DefaultJitter() time.Duration {
	return time.Duration(rand.Int63n(int64(MaxJitter/time.Microsecond))) * time.Microsecond
}

// NoJitter always returns zero
func NoJitter() time.Duration {
	return 0
}

// FixedJitter returns a JitterFunc that always yields d
func FixedJitter(d time.Duration) JitterFunc {
	return func() time.Duration {
		return d
	}
}

// Backoff computes the wait before the next attempt
type Backoff struct {
	policy *Policy
	jitter JitterFunc
}

// BackoffOption is a configuration option for Backoff
type BackoffOption func(*Backoff)

// WithJitter sets the jitter source
func WithJitter(jitter JitterFunc) BackoffOption {
	return func(b *Backoff) {
		if jitter != nil {
			b.jitter = jitter
		}
	}
}

// NewBackoff creates a backoff calculator for policy
func NewBackoff(policy *Policy, opts ...BackoffOption) *Backoff {
	b := &Backoff{
		policy: policy,
		jitter: DefaultJitter,
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Exponential returns BaseInterval * BackoffFactor^attemptIndex without jitter
func (b *Backoff) Exponential(attemptIndex int) time.Duration {
	cfg := b.policy.cfg
	if attemptIndex < 0 {
		attemptIndex = 0
	}

	delay := float64(cfg.BaseInterval) * math.Pow(cfg.BackoffFactor, float64(attemptIndex))
	if delay >= math.MaxInt64 || math.IsInf(delay, 0) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// WaitTime returns how long to wait before the attempt after attemptIndex,
// or zero when no further attempt should be made. remaining is the wait
// budget left for the request and now anchors Retry-After dates.
func (b *Backoff) WaitTime(outcome *types.AttemptOutcome, attemptIndex int, remaining time.Duration, now time.Time) time.Duration {
	if !b.policy.ShouldRetry(outcome, attemptIndex) {
		return 0
	}

	candidate := b.Exponential(attemptIndex)
	if jitter := b.jitter(); candidate <= time.Duration(math.MaxInt64)-jitter {
		candidate += jitter
	}

	if outcome.Err == nil {
		if hint := ParseRetryAfter(outcome.Headers.Get(RetryAfterHeader), now); hint > candidate {
			candidate = hint
		}
	}

	if candidate > remaining {
		return 0
	}
	return candidate
}
