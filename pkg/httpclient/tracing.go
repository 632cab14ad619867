package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jzx17/gohttp/pkg/types"
)

const tracerName = "github.com/jzx17/gohttp/pkg/httpclient"

// startSpan opens the client span of one logical request
func startSpan(ctx context.Context, tracer trace.Tracer, method, url, requestID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("url.full", url),
	}
	if requestID != "" {
		attrs = append(attrs, attribute.String("http.request.id", requestID))
	}
	return tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// endSpan records the final outcome on span and ends it
func endSpan(span trace.Span, attempts int, outcome *types.AttemptOutcome, err error) {
	defer span.End()

	span.SetAttributes(attribute.Int("http.request.resend_count", max(attempts-1, 0)))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case outcome == nil:
	case outcome.Err != nil:
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Message)
	default:
		span.SetAttributes(attribute.Int("http.response.status_code", outcome.StatusCode))
		if outcome.StatusCode >= 500 {
			span.SetStatus(codes.Error, "")
		}
	}
}

// spanEvents adds an event per attempt and retry to the span in the context
type spanEvents struct{}

// OnAttempt implements retry.EventHandler
func (spanEvents) OnAttempt(ctx context.Context, attempt int) {
	trace.SpanFromContext(ctx).AddEvent("attempt", trace.WithAttributes(attribute.Int("attempt", attempt)))
}

// OnRetry implements retry.EventHandler
func (spanEvents) OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.Int("attempt", attempt),
		attribute.Int64("wait_ms", wait.Milliseconds()),
	}
	if outcome != nil && outcome.Err != nil {
		attrs = append(attrs, attribute.String("error", outcome.Err.Message))
	} else if outcome != nil {
		attrs = append(attrs, attribute.Int("status", outcome.StatusCode))
	}
	trace.SpanFromContext(ctx).AddEvent("retry", trace.WithAttributes(attrs...))
}

// OnSuccess implements retry.EventHandler
func (spanEvents) OnSuccess(context.Context, int, *types.AttemptOutcome, time.Duration) {}

// OnFailure implements retry.EventHandler
func (spanEvents) OnFailure(context.Context, int, error) {}

// OnRetriesExhausted implements retry.EventHandler
func (spanEvents) OnRetriesExhausted(ctx context.Context, attempts int, _ *types.AttemptOutcome) {
	trace.SpanFromContext(ctx).AddEvent("retries_exhausted", trace.WithAttributes(attribute.Int("attempts", attempts)))
}
