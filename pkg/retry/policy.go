// Package retry provides retry mechanism strategies and implementations
package retry

import (
	"strings"

	"github.com/jzx17/gohttp/pkg/types"
)

// RetryAfterHeader is the server hint header
const RetryAfterHeader = "Retry-After"

// RetryPolicy decides whether requests and attempts are retried
type RetryPolicy interface {
	// ShouldConsiderRetry reports whether a request may be retried at all.
	// It is evaluated once per request.
	ShouldConsiderRetry(option types.RetryOption, method string) bool

	// ShouldRetry reports whether the outcome of attempt attemptIndex warrants another attempt
	ShouldRetry(outcome *types.AttemptOutcome, attemptIndex int) bool

	// MaxAttempts returns the maximum number of attempts of one request
	MaxAttempts() int
}

// Policy is the RetryPolicy built from a Config
type Policy struct {
	cfg         Config
	statusCodes map[int]struct{}
	methods     map[string]struct{}
}

// NewPolicy creates a policy from cfg
func NewPolicy(cfg Config) *Policy {
	p := &Policy{
		cfg:         cfg.Clone(),
		statusCodes: make(map[int]struct{}, len(cfg.StatusCodes)),
		methods:     make(map[string]struct{}, len(cfg.Methods)),
	}
	for _, code := range cfg.StatusCodes {
		p.statusCodes[code] = struct{}{}
	}
	for _, m := range cfg.Methods {
		p.methods[strings.ToUpper(m)] = struct{}{}
	}
	return p
}

// Config returns a copy of the policy configuration
func (p *Policy) Config() Config {
	return p.cfg.Clone()
}

// ShouldConsiderRetry implements RetryPolicy
func (p *Policy) ShouldConsiderRetry(option types.RetryOption, method string) bool {
	switch option {
	case types.DisableRetry:
		return false
	case types.EnableRetry:
		return p.cfg.Enabled
	case types.UseGlobalSettings:
		if !p.cfg.Enabled {
			return false
		}
		_, ok := p.methods[strings.ToUpper(method)]
		return ok
	default:
		return false
	}
}

// ShouldRetry implements RetryPolicy
func (p *Policy) ShouldRetry(outcome *types.AttemptOutcome, attemptIndex int) bool {
	return attemptIndex < p.cfg.MaxRetries && p.Retryable(outcome)
}

// Retryable reports whether the outcome is of a retryable kind, ignoring the attempt count
func (p *Policy) Retryable(outcome *types.AttemptOutcome) bool {
	if outcome == nil {
		return false
	}
	if outcome.Err != nil {
		return p.cfg.RetryOnTimeout && outcome.Err.Timeout
	}
	if outcome.Headers.Has(RetryAfterHeader) {
		return true
	}
	_, ok := p.statusCodes[outcome.StatusCode]
	return ok
}

// MaxAttempts implements RetryPolicy
func (p *Policy) MaxAttempts() int {
	return p.cfg.MaxRetries + 1
}
