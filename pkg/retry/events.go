package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jzx17/gohttp/pkg/types"
)

// EventHandler handles retry events
type EventHandler interface {
	// OnAttempt is called before every transport call; attempt starts at 1
	OnAttempt(ctx context.Context, attempt int)

	// OnRetry is called when another attempt is scheduled after wait
	OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration)

	// OnSuccess is called when the request ends with a response that does not warrant a retry
	OnSuccess(ctx context.Context, attempts int, outcome *types.AttemptOutcome, duration time.Duration)

	// OnFailure is called when the request ends with a transport error that is not retried
	OnFailure(ctx context.Context, attempts int, err error)

	// OnRetriesExhausted is called when the last outcome still warranted a retry
	// but the attempt limit or the wait budget was reached
	OnRetriesExhausted(ctx context.Context, attempts int, outcome *types.AttemptOutcome)
}

// RequestInfo describes the request being executed, for event consumers
type RequestInfo struct {
	Method    string
	URL       string
	RequestID string
}

type requestInfoKey struct{}

// WithRequestInfo attaches info to ctx
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the info attached by WithRequestInfo
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

// EventHandlers fans events out to several handlers in order
type EventHandlers []EventHandler

// OnAttempt implements EventHandler
func (hs EventHandlers) OnAttempt(ctx context.Context, attempt int) {
	for _, h := range hs {
		h.OnAttempt(ctx, attempt)
	}
}

// OnRetry implements EventHandler
func (hs EventHandlers) OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration) {
	for _, h := range hs {
		h.OnRetry(ctx, attempt, outcome, wait)
	}
}

// OnSuccess implements EventHandler
func (hs EventHandlers) OnSuccess(ctx context.Context, attempts int, outcome *types.AttemptOutcome, duration time.Duration) {
	for _, h := range hs {
		h.OnSuccess(ctx, attempts, outcome, duration)
	}
}

// OnFailure implements EventHandler
func (hs EventHandlers) OnFailure(ctx context.Context, attempts int, err error) {
	for _, h := range hs {
		h.OnFailure(ctx, attempts, err)
	}
}

// OnRetriesExhausted implements EventHandler
func (hs EventHandlers) OnRetriesExhausted(ctx context.Context, attempts int, outcome *types.AttemptOutcome) {
	for _, h := range hs {
		h.OnRetriesExhausted(ctx, attempts, outcome)
	}
}

// LogEventHandler writes retry events to a zerolog logger
type LogEventHandler struct {
	logger zerolog.Logger
}

// NewLogEventHandler creates a logging event handler
func NewLogEventHandler(logger zerolog.Logger) *LogEventHandler {
	return &LogEventHandler{logger: logger}
}

func (h *LogEventHandler) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if info, ok := RequestInfoFromContext(ctx); ok {
		e = e.Str("method", info.Method).Str("url", info.URL)
		if info.RequestID != "" {
			e = e.Str("request_id", info.RequestID)
		}
	}
	return e
}

func outcomeFields(e *zerolog.Event, outcome *types.AttemptOutcome) *zerolog.Event {
	if outcome == nil {
		return e
	}
	if outcome.Err != nil {
		return e.Str("error", outcome.Err.Message).Bool("timeout", outcome.Err.Timeout)
	}
	return e.Int("status", outcome.StatusCode)
}

// OnAttempt implements EventHandler
func (h *LogEventHandler) OnAttempt(ctx context.Context, attempt int) {
	h.event(ctx, h.logger.Debug()).Int("attempt", attempt).Msg("Sending request")
}

// OnRetry implements EventHandler
func (h *LogEventHandler) OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration) {
	e := h.event(ctx, h.logger.Info()).Int("attempt", attempt).Dur("wait", wait)
	outcomeFields(e, outcome).Msg("Retrying request")
}

// OnSuccess implements EventHandler
func (h *LogEventHandler) OnSuccess(ctx context.Context, attempts int, outcome *types.AttemptOutcome, duration time.Duration) {
	e := h.event(ctx, h.logger.Debug()).Int("attempt", attempts).Dur("duration", duration)
	outcomeFields(e, outcome).Msg("Request completed")
}

// OnFailure implements EventHandler
func (h *LogEventHandler) OnFailure(ctx context.Context, attempts int, err error) {
	h.event(ctx, h.logger.Warn()).Int("attempt", attempts).Err(err).Msg("Request failed")
}

// OnRetriesExhausted implements EventHandler
func (h *LogEventHandler) OnRetriesExhausted(ctx context.Context, attempts int, outcome *types.AttemptOutcome) {
	e := h.event(ctx, h.logger.Warn()).Int("attempt", attempts)
	outcomeFields(e, outcome).Msg("Retries exhausted")
}
