// Package httpclient provides an HTTP client that retries requests with
// exponential backoff, honours Retry-After hints and decodes JSON responses.
package httpclient

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jzx17/gohttp/internal/logging"
	"github.com/jzx17/gohttp/pkg/request"
	"github.com/jzx17/gohttp/pkg/response"
	"github.com/jzx17/gohttp/pkg/retry"
	"github.com/jzx17/gohttp/pkg/transport"
	"github.com/jzx17/gohttp/pkg/types"
)

// Client issues HTTP requests through one reusable transport handle.
// Logical requests are serialised: the handle serves one request at a time.
type Client struct {
	mu     sync.Mutex
	cfg    Config
	closed bool

	transport types.Transport
	owned     bool
	rootCAs   *x509.CertPool
	dialer    *net.Dialer

	executor   *retry.Executor
	handlers   []retry.EventHandler
	metrics    *Metrics
	registerer prometheus.Registerer

	tracer         trace.Tracer
	tracerProvider trace.TracerProvider

	logger zerolog.Logger
	clock  quartz.Clock
	jitter retry.JitterFunc

	// nextOverride applies to the next request that uses the global settings
	nextOverride types.RetryOption

	connections atomic.Int64
}

// New creates a client. The configuration is validated and its text fields
// normalised; a *types.ValidationError is returned when it is invalid.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		cfg:    DefaultConfig(),
		logger: zerolog.Nop(),
		clock:  quartz.NewReal(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	c.cfg.normalize()
	c.cfg.Retry = c.cfg.Retry.Clone()

	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)

	handlers := retry.EventHandlers{retry.NewLogEventHandler(c.logger), spanEvents{}}
	if c.registerer != nil {
		c.metrics = NewMetrics(c.registerer)
		handlers = append(handlers, c.metrics)
	}
	handlers = append(handlers, c.handlers...)

	executorOpts := []retry.ExecutorOption{
		retry.WithEventHandler(handlers),
		retry.WithClock(c.clock),
	}
	if c.jitter != nil {
		executorOpts = append(executorOpts, retry.WithBackoffOptions(retry.WithJitter(c.jitter)))
	}
	c.executor = retry.NewExecutor(c.cfg.Retry, executorOpts...)

	return c, nil
}

// Config returns a copy of the client configuration
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.Retry = c.cfg.Retry.Clone()
	cfg.DefaultHeaders = normalizeHeaders(c.cfg.DefaultHeaders)
	cfg.TransportOptions = make(map[string]any, len(c.cfg.TransportOptions))
	for key, value := range c.cfg.TransportOptions {
		cfg.TransportOptions[key] = value
	}
	return cfg
}

// OverrideRetryForNextRequest sets the retry option of the next request
// executed with UseGlobalSettings. It is cleared once that request completes.
func (c *Client) OverrideRetryForNextRequest(option types.RetryOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextOverride = option
}

// Execute runs req with retries. Any HTTP status yields a Response; a
// *types.TransportError is returned when the last attempt failed in
// transport, and ctx.Err() when ctx ended while waiting to retry.
func (c *Client) Execute(ctx context.Context, req *request.Request) (*response.Response, error) {
	if req == nil {
		return nil, types.NewValidationError("request", "", errors.New("request is nil"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClientClosed
	}

	option := req.RetryOption()
	if option == types.UseGlobalSettings {
		option = c.nextOverride
	}
	defer func() {
		c.nextOverride = types.UseGlobalSettings
	}()

	opts, requestID, err := c.transportOptions(req)
	if err != nil {
		return nil, err
	}

	sanitized := logging.SanitizeURL(opts.URL)
	ctx = retry.WithRequestInfo(ctx, retry.RequestInfo{
		Method:    opts.Method,
		URL:       sanitized,
		RequestID: requestID,
	})
	ctx, span := startSpan(ctx, c.tracer, opts.Method, sanitized, requestID)

	handle := c.handle()
	result, err := c.executor.Execute(ctx, opts.Method, option, func(ctx context.Context) *types.AttemptOutcome {
		outcome := handle.Execute(ctx, opts)
		if outcome != nil && outcome.NewConnections > 0 {
			c.connections.Add(int64(outcome.NewConnections))
			if c.metrics != nil {
				c.metrics.addConnections(outcome.NewConnections)
			}
		}
		return outcome
	})
	endSpan(span, result.Attempts, result.Outcome, err)
	if err != nil {
		return nil, err
	}

	outcome := result.Outcome
	if outcome.Err != nil {
		transportErr := *outcome.Err
		transportErr.Attempts = result.Attempts
		return nil, &transportErr
	}

	resp := response.FromOutcome(outcome, c.cfg.Decode)
	resp.Stats = response.Stats{
		Attempts:  result.Attempts,
		Elapsed:   result.Elapsed,
		TotalWait: result.TotalWait,
	}
	return resp, nil
}

// transportOptions resolves req and the client configuration into the
// options of one transport call
func (c *Client) transportOptions(req *request.Request) (*types.TransportOptions, string, error) {
	url, err := req.QueryURL()
	if err != nil {
		return nil, "", wrapBodyError(err)
	}
	body, err := req.EncodedBody()
	if err != nil {
		return nil, "", wrapBodyError(err)
	}

	headers := normalizeHeaders(req.Headers())
	requestID := ""
	if name := c.cfg.RequestIDHeader; name != "" {
		if id, ok := lookupHeader(headers, name); ok {
			requestID = id
		} else if id, ok := lookupHeader(c.cfg.DefaultHeaders, name); ok {
			requestID = id
		} else {
			requestID = uuid.NewString()
			headers[name] = requestID
		}
	}

	raw := make(map[string]any, len(c.cfg.TransportOptions))
	for key, value := range c.cfg.TransportOptions {
		raw[key] = value
	}

	return &types.TransportOptions{
		URL:        url,
		Method:     req.Method(),
		Headers:    transport.FormatHeaders(c.cfg.DefaultHeaders, headers, c.cfg.UserAgent),
		Body:       body,
		VerifyPeer: c.cfg.VerifyPeer,
		VerifyHost: c.cfg.VerifyHost,
		Cookie:     c.cfg.Cookie,
		CookieFile: c.cfg.CookieFile,
		Auth:       c.cfg.Auth,
		Proxy:      c.cfg.Proxy,
		Timeout:    c.cfg.Timeout,
		Raw:        raw,
	}, requestID, nil
}

func wrapBodyError(err error) error {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		return err
	}
	return types.NewValidationError("body", "", err)
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(strings.TrimSpace(k), name) && v != "" {
			return v, true
		}
	}
	return "", false
}

// handle returns the transport, creating it on first use. Must be called with c.mu held.
func (c *Client) handle() types.Transport {
	if c.transport == nil {
		c.transport = transport.New(
			transport.WithRootCAs(c.rootCAs),
			transport.WithDialer(c.dialer),
			transport.WithLogger(c.logger),
		)
		c.owned = true
	}
	return c.transport
}

// ExecuteAsync runs req in its own goroutine. The channel yields exactly one result.
func (c *Client) ExecuteAsync(ctx context.Context, req *request.Request) <-chan types.Result[*response.Response] {
	resultChan := make(chan types.Result[*response.Response], 1)

	go func() {
		defer close(resultChan)

		start := c.clock.Now()
		resp, err := c.Execute(ctx, req)
		resultChan <- types.Result[*response.Response]{
			Value:    resp,
			Error:    err,
			Duration: c.clock.Since(start),
		}
	}()

	return resultChan
}

// Do builds a request and executes it. override, when given, replaces the
// request's retry option.
func (c *Client) Do(ctx context.Context, method types.Method, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	var opts []request.Option
	if len(override) > 0 {
		opts = append(opts, request.WithRetryOption(override[0]))
	}

	req, err := request.New(rawURL, method, headers, body, opts...)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, req)
}

// Get sends a GET request. A structured body is sent as the query string.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodGet, rawURL, headers, body, override...)
}

// Head sends a HEAD request
func (c *Client) Head(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodHead, rawURL, headers, body, override...)
}

// Post sends a POST request
func (c *Client) Post(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodPost, rawURL, headers, body, override...)
}

// Put sends a PUT request
func (c *Client) Put(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodPut, rawURL, headers, body, override...)
}

// Patch sends a PATCH request
func (c *Client) Patch(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodPatch, rawURL, headers, body, override...)
}

// Delete sends a DELETE request
func (c *Client) Delete(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodDelete, rawURL, headers, body, override...)
}

// Options sends an OPTIONS request
func (c *Client) Options(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodOptions, rawURL, headers, body, override...)
}

// Connect sends a CONNECT request
func (c *Client) Connect(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodConnect, rawURL, headers, body, override...)
}

// Trace sends a TRACE request
func (c *Client) Trace(ctx context.Context, rawURL string, headers map[string]string, body any, override ...types.RetryOption) (*response.Response, error) {
	return c.Do(ctx, types.MethodTrace, rawURL, headers, body, override...)
}

// TotalConnections returns the number of connections opened since the
// client was created or its handle was last reset
func (c *Client) TotalConnections() int64 {
	return c.connections.Load()
}

// ResetHandle drops pooled connections and zeroes the connection count
func (c *Client) ResetHandle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil {
		c.transport.Reset()
	}
	c.connections.Store(0)
}

// Stats returns the retry statistics of the client
func (c *Client) Stats() retry.RetryStats {
	return c.executor.GetStats()
}

// ResetStats clears the retry statistics
func (c *Client) ResetStats() {
	c.executor.ResetStats()
}

// Close releases the transport handle. Later requests fail with types.ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.transport != nil {
		if closer, ok := c.transport.(interface{ Close() }); ok && c.owned {
			closer.Close()
		} else {
			c.transport.Reset()
		}
	}
	return nil
}

