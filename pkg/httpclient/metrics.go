package httpclient

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jzx17/gohttp/pkg/retry"
	"github.com/jzx17/gohttp/pkg/types"
)

// Request outcome label values
const (
	outcomeSuccess   = "success"
	outcomeFailure   = "failure"
	outcomeExhausted = "exhausted"
)

// Metrics holds the Prometheus collectors of a client. It records retry
// events as a retry.EventHandler.
type Metrics struct {
	// attempts tracks transport calls by method
	attempts *prometheus.CounterVec

	// retries tracks scheduled retries by method
	retries *prometheus.CounterVec

	// retryWait tracks the wait before each retry
	retryWait prometheus.Histogram

	// connections tracks newly opened connections
	connections prometheus.Counter

	// requests tracks finished logical requests by method and outcome
	requests *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. It panics
// if they are already registered there.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gohttp_attempts_total",
				Help: "Total transport calls by method",
			},
			[]string{"method"},
		),
		retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gohttp_retries_total",
				Help: "Total scheduled retries by method",
			},
			[]string{"method"},
		),
		retryWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gohttp_retry_wait_seconds",
				Help:    "Wait before each retry in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 4, 8, 16, 32, 64, 128},
			},
		),
		connections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gohttp_connections_total",
				Help: "Total connections opened by the transport",
			},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gohttp_requests_total",
				Help: "Total finished requests by method and outcome",
			},
			[]string{"method", "outcome"},
		),
	}
}

func methodLabel(ctx context.Context) string {
	if info, ok := retry.RequestInfoFromContext(ctx); ok {
		return info.Method
	}
	return "unknown"
}

// addConnections counts connections opened by one attempt
func (m *Metrics) addConnections(n int) {
	if n > 0 {
		m.connections.Add(float64(n))
	}
}

// OnAttempt implements retry.EventHandler
func (m *Metrics) OnAttempt(ctx context.Context, attempt int) {
	m.attempts.WithLabelValues(methodLabel(ctx)).Inc()
}

// OnRetry implements retry.EventHandler
func (m *Metrics) OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration) {
	m.retries.WithLabelValues(methodLabel(ctx)).Inc()
	m.retryWait.Observe(wait.Seconds())
}

// OnSuccess implements retry.EventHandler
func (m *Metrics) OnSuccess(ctx context.Context, attempts int, outcome *types.AttemptOutcome, duration time.Duration) {
	m.requests.WithLabelValues(methodLabel(ctx), outcomeSuccess).Inc()
}

// OnFailure implements retry.EventHandler
func (m *Metrics) OnFailure(ctx context.Context, attempts int, err error) {
	m.requests.WithLabelValues(methodLabel(ctx), outcomeFailure).Inc()
}

// OnRetriesExhausted implements retry.EventHandler
func (m *Metrics) OnRetriesExhausted(ctx context.Context, attempts int, outcome *types.AttemptOutcome) {
	m.requests.WithLabelValues(methodLabel(ctx), outcomeExhausted).Inc()
}
