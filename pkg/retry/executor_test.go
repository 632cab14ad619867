package retry

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/jzx17/gohttp/internal/testutils"
	"github.com/jzx17/gohttp/pkg/types"
)

const driveTimeout = 5 * time.Second

// scripted returns an AttemptFunc that yields outcomes in order, repeating the last
func scripted(calls *int32, outcomes ...*types.AttemptOutcome) AttemptFunc {
	return func(ctx context.Context) *types.AttemptOutcome {
		n := int(atomic.AddInt32(calls, 1))
		if n > len(outcomes) {
			n = len(outcomes)
		}
		return outcomes[n-1]
	}
}

type runResult struct {
	result *Result
	err    error
	waits  []time.Duration
}

// run executes on a mock clock and fires every sleep the executor schedules
func run(t *testing.T, e *Executor, mClock *quartz.Mock, ctx context.Context, method string, option types.RetryOption, fn AttemptFunc) runResult {
	t.Helper()

	done := make(chan struct{})
	var rr runResult
	go func() {
		defer close(done)
		rr.result, rr.err = e.Execute(ctx, method, option, fn)
	}()

	rr.waits = testutils.DriveTimers(t, mClock, done, driveTimeout)
	return rr
}

func newTestExecutor(t *testing.T, cfg Config, opts ...ExecutorOption) (*Executor, *quartz.Mock) {
	mClock := testutils.NewMockClock(t)
	opts = append([]ExecutorOption{WithClock(mClock), WithBackoffOptions(WithJitter(FixedJitter(10 * time.Millisecond)))}, opts...)
	return NewExecutor(cfg, opts...), mClock
}

func TestExecutor_Execute_Success(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(200, nil, `{"ok":true}`)))

	if rr.err != nil {
		t.Fatalf("Expected no error, got %v", rr.err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if len(rr.waits) != 0 {
		t.Errorf("Expected no waits, got %v", rr.waits)
	}
	if rr.result.Outcome.StatusCode != 200 {
		t.Errorf("Expected status 200, got %d", rr.result.Outcome.StatusCode)
	}

	stats := e.GetStats()
	if stats.TotalAttempts != 1 || stats.TotalSuccesses != 1 || stats.TotalRetries != 0 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestExecutor_Execute_RetriesUntilLimit(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(503, nil, "unavailable")))

	if rr.err != nil {
		t.Fatalf("Expected no error, got %v", rr.err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls, got %d", calls)
	}

	expected := []time.Duration{1010 * time.Millisecond, 2010 * time.Millisecond, 4010 * time.Millisecond}
	if len(rr.waits) != len(expected) {
		t.Fatalf("Expected waits %v, got %v", expected, rr.waits)
	}
	for i := range expected {
		if rr.waits[i] != expected[i] {
			t.Errorf("Wait %d: expected %v, got %v", i, expected[i], rr.waits[i])
		}
	}

	if rr.result.Outcome.StatusCode != 503 {
		t.Errorf("Expected final status 503, got %d", rr.result.Outcome.StatusCode)
	}
	if rr.result.Attempts != 4 {
		t.Errorf("Expected 4 attempts, got %d", rr.result.Attempts)
	}
	if rr.result.TotalWait != 7030*time.Millisecond {
		t.Errorf("Expected total wait 7.03s, got %v", rr.result.TotalWait)
	}

	stats := e.GetStats()
	if stats.TotalRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", stats.TotalRetries)
	}
	if stats.TotalExhausted != 1 {
		t.Errorf("Expected 1 exhausted request, got %d", stats.TotalExhausted)
	}
	if stats.AverageAttempts != 4 {
		t.Errorf("Expected average 4 attempts, got %v", stats.AverageAttempts)
	}
}

func TestExecutor_Execute_RetryAfterSeconds(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls,
			testutils.Response(429, map[string]string{"Retry-After": "5"}, ""),
			testutils.Response(200, nil, "ok"),
		))

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if len(rr.waits) != 1 || rr.waits[0] != 5*time.Second {
		t.Errorf("Expected a single 5s wait, got %v", rr.waits)
	}
	if rr.result.Outcome.StatusCode != 200 {
		t.Errorf("Expected final status 200, got %d", rr.result.Outcome.StatusCode)
	}
}

func TestExecutor_Execute_RetryAfterDate(t *testing.T) {
	now := time.Date(2030, time.March, 1, 12, 0, 0, 0, time.UTC)
	mClock := testutils.NewMockClockAt(t, now)
	e := NewExecutor(enabledConfig(), WithClock(mClock), WithBackoffOptions(WithJitter(NoJitter)))

	date := now.Add(10 * time.Second).Format(time.RFC1123)
	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls,
			testutils.Response(503, map[string]string{"Retry-After": date}, ""),
			testutils.Response(200, nil, ""),
		))

	if len(rr.waits) != 1 || rr.waits[0] != 10*time.Second {
		t.Errorf("Expected a single 10s wait, got %v", rr.waits)
	}
}

func TestExecutor_Execute_BudgetExceeded(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(503, map[string]string{"Retry-After": "100"}, "")))

	if rr.err != nil {
		t.Fatalf("Expected no error on budget exhaustion, got %v", rr.err)
	}
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if len(rr.waits) != 1 || rr.waits[0] != 100*time.Second {
		t.Errorf("Expected a single 100s wait, got %v", rr.waits)
	}
	if rr.result.Outcome.StatusCode != 503 {
		t.Errorf("Expected last response to be returned, got %d", rr.result.Outcome.StatusCode)
	}
}

func TestExecutor_Execute_ZeroBudget(t *testing.T) {
	cfg := enabledConfig()
	cfg.MaxTotalWaitTime = 0
	e, mClock := newTestExecutor(t, cfg)

	var calls int32
	run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(503, nil, "")))

	if calls != 1 {
		t.Errorf("Expected 1 call with zero budget, got %d", calls)
	}
}

func TestExecutor_Execute_NoRetry(t *testing.T) {
	disabled := DefaultConfig()

	tests := []struct {
		name    string
		cfg     Config
		method  string
		option  types.RetryOption
		outcome *types.AttemptOutcome
	}{
		{"disable override", enabledConfig(), "GET", types.DisableRetry, testutils.Response(503, nil, "")},
		{"retries disabled", disabled, "GET", types.UseGlobalSettings, testutils.Response(503, nil, "")},
		{"enable override while disabled", disabled, "GET", types.EnableRetry, testutils.Response(503, nil, "")},
		{"method not listed", enabledConfig(), "POST", types.UseGlobalSettings, testutils.Response(503, nil, "")},
		{"timeout without retry on timeout", enabledConfig(), "GET", types.UseGlobalSettings, testutils.Failure("operation timed out", true)},
		{"connection refused", enabledConfig(), "GET", types.EnableRetry, testutils.Failure("connection refused", false)},
		{"non retryable status", enabledConfig(), "GET", types.UseGlobalSettings, testutils.Response(404, nil, "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, mClock := newTestExecutor(t, tt.cfg)

			var calls int32
			rr := run(t, e, mClock, context.Background(), tt.method, tt.option, scripted(&calls, tt.outcome))

			if rr.err != nil {
				t.Fatalf("Expected no error, got %v", rr.err)
			}
			if calls != 1 {
				t.Errorf("Expected exactly 1 call, got %d", calls)
			}
			if rr.result.Outcome != tt.outcome {
				t.Errorf("Expected the single outcome to be returned")
			}
		})
	}
}

func TestExecutor_Execute_EnableRetryIgnoresMethods(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	run(t, e, mClock, context.Background(), "POST", types.EnableRetry,
		scripted(&calls, testutils.Response(502, nil, ""), testutils.Response(201, nil, "")))

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

func TestExecutor_Execute_RetryOnTimeout(t *testing.T) {
	cfg := enabledConfig()
	cfg.RetryOnTimeout = true
	e, mClock := newTestExecutor(t, cfg)

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Failure("operation timed out", true), testutils.Response(200, nil, "")))

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if rr.result.Outcome.Err != nil {
		t.Errorf("Expected final outcome to be a response, got %v", rr.result.Outcome.Err)
	}
}

func TestExecutor_Execute_TransportErrorExhausted(t *testing.T) {
	cfg := enabledConfig()
	cfg.RetryOnTimeout = true
	cfg.MaxRetries = 1
	e, mClock := newTestExecutor(t, cfg)

	var calls int32
	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Failure("operation timed out", true)))

	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
	if rr.result.Outcome.Err == nil || !rr.result.Outcome.Err.Timeout {
		t.Errorf("Expected final timeout outcome")
	}
	if e.GetStats().TotalFailures != 1 {
		t.Errorf("Expected 1 failure, got %d", e.GetStats().TotalFailures)
	}
}

func TestExecutor_Execute_ContextCancelledDuringSleep(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int32
	done := make(chan struct{})
	var result *Result
	var err error
	go func() {
		defer close(done)
		result, err = e.Execute(ctx, "GET", types.UseGlobalSettings,
			scripted(&calls, testutils.Response(503, nil, "")))
	}()

	deadline := time.Now().Add(driveTimeout)
	for {
		if _, ok := mClock.Peek(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Executor never started sleeping")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(driveTimeout):
		t.Fatalf("Executor did not return after cancellation")
	}

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected no attempt after cancellation, got %d calls", calls)
	}
	if result.Outcome == nil || result.Outcome.StatusCode != 503 {
		t.Errorf("Expected last outcome to be kept")
	}
}

func TestExecutor_Execute_ContextCancelledBeforeStart(t *testing.T) {
	e, _ := newTestExecutor(t, enabledConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	_, err := e.Execute(ctx, "GET", types.UseGlobalSettings, scripted(&calls, testutils.Response(200, nil, "")))

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no calls, got %d", calls)
	}
}

func TestExecutor_Execute_NilOutcome(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	rr := run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		func(ctx context.Context) *types.AttemptOutcome { return nil })

	if rr.result.Outcome == nil || rr.result.Outcome.Err == nil {
		t.Errorf("Expected nil outcome to become a transport error")
	}
}

func TestExecutor_ResetStats(t *testing.T) {
	e, mClock := newTestExecutor(t, enabledConfig())

	var calls int32
	run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(503, nil, ""), testutils.Response(200, nil, "")))

	stats := e.GetStats()
	if stats.TotalAttempts != 2 || stats.TotalRetryDelay != 1010*time.Millisecond {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.LastRetryTime.IsZero() {
		t.Errorf("Expected last retry time to be set")
	}

	e.ResetStats()
	stats = e.GetStats()
	if stats.TotalAttempts != 0 || stats.TotalRetryDelay != 0 || !stats.LastRetryTime.IsZero() {
		t.Errorf("Expected cleared stats, got %+v", stats)
	}
}

type recordingHandler struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHandler) add(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, s)
}

func (h *recordingHandler) OnAttempt(ctx context.Context, attempt int) { h.add("attempt") }
func (h *recordingHandler) OnRetry(ctx context.Context, attempt int, outcome *types.AttemptOutcome, wait time.Duration) {
	h.add("retry")
}
func (h *recordingHandler) OnSuccess(ctx context.Context, attempts int, outcome *types.AttemptOutcome, d time.Duration) {
	h.add("success")
}
func (h *recordingHandler) OnFailure(ctx context.Context, attempts int, err error) { h.add("failure") }
func (h *recordingHandler) OnRetriesExhausted(ctx context.Context, attempts int, outcome *types.AttemptOutcome) {
	h.add("exhausted")
}

func (h *recordingHandler) Events() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return strings.Join(h.events, ",")
}

func TestExecutor_EventHandler(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []*types.AttemptOutcome
		want     string
	}{
		{"success after retry", []*types.AttemptOutcome{testutils.Response(503, nil, ""), testutils.Response(200, nil, "")}, "attempt,retry,attempt,success"},
		{"failure", []*types.AttemptOutcome{testutils.Failure("refused", false)}, "attempt,failure"},
		{"exhausted", []*types.AttemptOutcome{testutils.Response(500, nil, "")}, "attempt,retry,attempt,retry,attempt,retry,attempt,exhausted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := &recordingHandler{}
			second := &recordingHandler{}
			e, mClock := newTestExecutor(t, enabledConfig(), WithEventHandler(EventHandlers{first, second}))

			var calls int32
			run(t, e, mClock, context.Background(), "GET", types.UseGlobalSettings, scripted(&calls, tt.outcomes...))

			if first.Events() != tt.want {
				t.Errorf("Expected events %q, got %q", tt.want, first.Events())
			}
			if second.Events() != first.Events() {
				t.Errorf("Expected fan-out to deliver the same events")
			}
		})
	}
}

func TestLogEventHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	e, mClock := newTestExecutor(t, enabledConfig(), WithEventHandler(NewLogEventHandler(logger)))

	ctx := WithRequestInfo(context.Background(), RequestInfo{Method: "GET", URL: "http://example.com/x", RequestID: "req-1"})

	var calls int32
	run(t, e, mClock, ctx, "GET", types.UseGlobalSettings,
		scripted(&calls, testutils.Response(503, nil, ""), testutils.Response(200, nil, "")))

	out := buf.String()
	for _, want := range []string{
		`"message":"Sending request"`,
		`"message":"Retrying request"`,
		`"message":"Request completed"`,
		`"request_id":"req-1"`,
		`"url":"http://example.com/x"`,
		`"status":503`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got:\n%s", want, out)
		}
	}
}

func TestRequestInfoFromContext(t *testing.T) {
	if _, ok := RequestInfoFromContext(context.Background()); ok {
		t.Errorf("Expected no info on empty context")
	}

	ctx := WithRequestInfo(context.Background(), RequestInfo{Method: "PUT"})
	info, ok := RequestInfoFromContext(ctx)
	if !ok || info.Method != "PUT" {
		t.Errorf("Expected info to round-trip, got %+v", info)
	}
}
