// Package retry provides retry executor implementation
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/jzx17/gohttp/pkg/types"
)

// AttemptFunc performs exactly one transport call
type AttemptFunc func(ctx context.Context) *types.AttemptOutcome

// Result is the final outcome of a request together with its retry history
type Result struct {
	// Outcome is the outcome of the last attempt
	Outcome *types.AttemptOutcome

	// Attempts is the number of transport calls made
	Attempts int

	// TotalWait is the time spent waiting between attempts
	TotalWait time.Duration

	// Elapsed is the wall time of the whole request
	Elapsed time.Duration
}

// Executor runs the attempt loop of one request at a time
type Executor struct {
	policy       *Policy
	backoff      *Backoff
	eventHandler EventHandler
	stats        RetryStats
	clock        quartz.Clock
}

// RetryStats contains retry statistics
type RetryStats struct {
	TotalAttempts   int64         // total attempt count
	TotalRetries    int64         // attempts after the first
	TotalSuccesses  int64         // requests that ended with a response
	TotalFailures   int64         // requests that ended with a transport error
	TotalExhausted  int64         // requests that stopped while still retryable
	AverageAttempts float64       // average attempt count
	LastRetryTime   time.Time     // last retry time
	TotalRetryDelay time.Duration // total retry delay time
	mu              sync.RWMutex
}

// ExecutorOption is a configuration option for the executor
type ExecutorOption func(*Executor)

// WithEventHandler sets the event handler
func WithEventHandler(handler EventHandler) ExecutorOption {
	return func(e *Executor) {
		e.eventHandler = handler
	}
}

// WithClock sets the clock used for sleeping and for Retry-After dates
func WithClock(clock quartz.Clock) ExecutorOption {
	return func(e *Executor) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithBackoffOptions configures the backoff calculator
func WithBackoffOptions(opts ...BackoffOption) ExecutorOption {
	return func(e *Executor) {
		for _, opt := range opts {
			opt(e.backoff)
		}
	}
}

// NewExecutor creates an executor for cfg
func NewExecutor(cfg Config, opts ...ExecutorOption) *Executor {
	policy := NewPolicy(cfg)
	e := &Executor{
		policy:  policy,
		backoff: NewBackoff(policy),
		clock:   quartz.NewReal(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Policy returns the policy of the executor
func (e *Executor) Policy() *Policy {
	return e.policy
}

// Backoff returns the backoff calculator of the executor
func (e *Executor) Backoff() *Backoff {
	return e.backoff
}

// Execute runs attempt until its outcome no longer warrants a retry, the
// attempt limit is hit or the wait budget is used up, and returns the last
// outcome. The only error is ctx.Err() when ctx ends between attempts.
func (e *Executor) Execute(ctx context.Context, method string, option types.RetryOption, attempt AttemptFunc) (*Result, error) {
	consider := e.policy.ShouldConsiderRetry(option, method)
	budget := e.policy.cfg.MaxTotalWaitTime
	start := e.clock.Now()

	result := &Result{}
	var wait time.Duration
	index := 0

	for {
		if index > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				result.Elapsed = e.clock.Since(start)
				e.updateStats(func(stats *RetryStats) {
					stats.TotalFailures++
					stats.updateAverageAttempts()
				})
				e.onFailure(ctx, result.Attempts, err)
				return result, err
			}
			budget -= wait
			result.TotalWait += wait
		} else if err := ctx.Err(); err != nil {
			return result, err
		}

		result.Attempts++
		e.updateStats(func(stats *RetryStats) {
			stats.TotalAttempts++
			if index > 0 {
				stats.TotalRetries++
			}
		})
		if e.eventHandler != nil {
			e.eventHandler.OnAttempt(ctx, result.Attempts)
		}

		outcome := attempt(ctx)
		if outcome == nil {
			outcome = &types.AttemptOutcome{Err: types.NewTransportError(nil, false)}
		}
		result.Outcome = outcome

		wait = 0
		if consider {
			wait = e.backoff.WaitTime(outcome, index, budget, e.clock.Now())
			index++
		}
		if wait == 0 {
			break
		}

		e.updateStats(func(stats *RetryStats) {
			stats.LastRetryTime = e.clock.Now()
			stats.TotalRetryDelay += wait
		})
		if e.eventHandler != nil {
			e.eventHandler.OnRetry(ctx, result.Attempts+1, outcome, wait)
		}
	}

	result.Elapsed = e.clock.Since(start)
	e.finish(ctx, consider, result)
	return result, nil
}

// sleep waits d on the executor clock, returning early when ctx ends
func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	timer := e.clock.NewTimer(d, "executor", "sleep")
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *Executor) finish(ctx context.Context, consider bool, result *Result) {
	outcome := result.Outcome
	exhausted := consider && e.policy.Retryable(outcome)

	e.updateStats(func(stats *RetryStats) {
		if outcome.Err != nil {
			stats.TotalFailures++
		} else {
			stats.TotalSuccesses++
		}
		if exhausted {
			stats.TotalExhausted++
		}
		stats.updateAverageAttempts()
	})

	if e.eventHandler == nil {
		return
	}
	switch {
	case exhausted:
		e.eventHandler.OnRetriesExhausted(ctx, result.Attempts, outcome)
	case outcome.Err != nil:
		e.eventHandler.OnFailure(ctx, result.Attempts, outcome.Err)
	default:
		e.eventHandler.OnSuccess(ctx, result.Attempts, outcome, result.Elapsed)
	}
}

func (e *Executor) onFailure(ctx context.Context, attempts int, err error) {
	if e.eventHandler != nil {
		e.eventHandler.OnFailure(ctx, attempts, err)
	}
}

// GetStats gets retry statistics
func (e *Executor) GetStats() RetryStats {
	e.stats.mu.RLock()
	defer e.stats.mu.RUnlock()
	return RetryStats{
		TotalAttempts:   e.stats.TotalAttempts,
		TotalRetries:    e.stats.TotalRetries,
		TotalSuccesses:  e.stats.TotalSuccesses,
		TotalFailures:   e.stats.TotalFailures,
		TotalExhausted:  e.stats.TotalExhausted,
		AverageAttempts: e.stats.AverageAttempts,
		LastRetryTime:   e.stats.LastRetryTime,
		TotalRetryDelay: e.stats.TotalRetryDelay,
		// don't copy mutex
	}
}

// ResetStats resets statistics
func (e *Executor) ResetStats() {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()

	e.stats.TotalAttempts = 0
	e.stats.TotalRetries = 0
	e.stats.TotalSuccesses = 0
	e.stats.TotalFailures = 0
	e.stats.TotalExhausted = 0
	e.stats.AverageAttempts = 0
	e.stats.LastRetryTime = time.Time{}
	e.stats.TotalRetryDelay = 0
}

// updateStats updates statistics (thread-safe)
func (e *Executor) updateStats(fn func(*RetryStats)) {
	e.stats.mu.Lock()
	defer e.stats.mu.Unlock()
	fn(&e.stats)
}

// updateAverageAttempts updates average attempt count
func (s *RetryStats) updateAverageAttempts() {
	totalOperations := s.TotalSuccesses + s.TotalFailures
	if totalOperations > 0 {
		s.AverageAttempts = float64(s.TotalAttempts) / float64(totalOperations)
	}
}
