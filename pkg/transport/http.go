// Package transport performs single HTTP calls over a reusable connection handle
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	interrors "github.com/jzx17/gohttp/internal/errors"
	"github.com/jzx17/gohttp/internal/logging"
	"github.com/jzx17/gohttp/pkg/types"
)

// HTTPTransport implements types.Transport on net/http. It keeps one
// connection pool and rebuilds it only when TLS, proxy or connection
// settings change between calls.
type HTTPTransport struct {
	mu      sync.Mutex
	handle  *http.Transport
	key     handleKey
	jars    map[string]*fileJar
	rootCAs *x509.CertPool
	dialer  *net.Dialer
	logger  zerolog.Logger

	connections atomic.Int64
}

// Option is a configuration option for HTTPTransport
type Option func(*HTTPTransport)

// WithRootCAs sets the certificate pool used for peer verification
func WithRootCAs(pool *x509.CertPool) Option {
	return func(t *HTTPTransport) {
		t.rootCAs = pool
	}
}

// WithLogger sets the logger for per-call debug output
func WithLogger(logger zerolog.Logger) Option {
	return func(t *HTTPTransport) {
		t.logger = logger
	}
}

// WithDialer sets the dialer used for new connections
func WithDialer(dialer *net.Dialer) Option {
	return func(t *HTTPTransport) {
		if dialer != nil {
			t.dialer = dialer
		}
	}
}

// New creates an HTTP transport
func New(opts ...Option) *HTTPTransport {
	t := &HTTPTransport{
		jars: make(map[string]*fileJar),
		dialer: &net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		},
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// TotalConnections returns the number of connections opened since the last Reset
func (t *HTTPTransport) TotalConnections() int64 {
	return t.connections.Load()
}

// Reset implements types.Transport
func (t *HTTPTransport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil {
		t.handle.CloseIdleConnections()
	}
	t.handle = nil
	t.jars = make(map[string]*fileJar)
	t.connections.Store(0)
}

// Close releases pooled connections
func (t *HTTPTransport) Close() {
	t.Reset()
}

// Execute implements types.Transport. It performs exactly one call; a
// redirect chain counts as one call.
func (t *HTTPTransport) Execute(ctx context.Context, opts *types.TransportOptions) *types.AttemptOutcome {
	s, err := resolveSettings(opts.Timeout, opts.Raw)
	if err != nil {
		return failure(err)
	}

	handle, err := t.handleFor(opts, s)
	if err != nil {
		return failure(err)
	}

	var jar http.CookieJar
	var fj *fileJar
	if opts.CookieFile != "" {
		if fj, err = t.jarFor(opts.CookieFile); err != nil {
			return failure(err)
		}
		jar = fj
	}

	client := &http.Client{
		Transport:     handle,
		Jar:           jar,
		CheckRedirect: redirectPolicy(s),
	}

	attemptCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var newConns atomic.Int32
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if !info.Reused {
				newConns.Add(1)
				t.connections.Add(1)
			}
		},
	}
	attemptCtx = httptrace.WithClientTrace(attemptCtx, trace)

	req, err := buildRequest(attemptCtx, opts)
	if err != nil {
		return failure(err)
	}

	headers := loggedHeaders(req.Header)
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		transportErr := interrors.ToTransportError(ctx, err, s.timeout)
		t.logger.Debug().
			Str("method", opts.Method).
			Str("url", logging.SanitizeURL(opts.URL)).
			Strs("headers", headers).
			Dur("duration", time.Since(start)).
			Err(transportErr).
			Msg("HTTP call failed")
		return &types.AttemptOutcome{Err: transportErr, NewConnections: int(newConns.Load())}
	}
	defer resp.Body.Close()

	outcome, err := assemble(resp)
	if err != nil {
		return &types.AttemptOutcome{Err: interrors.ToTransportError(ctx, err, s.timeout), NewConnections: int(newConns.Load())}
	}
	outcome.NewConnections = int(newConns.Load())

	if fj != nil {
		if err := fj.Save(); err != nil {
			t.logger.Warn().Err(err).Str("path", opts.CookieFile).Msg("Failed to persist cookies")
		}
	}

	t.logger.Debug().
		Str("method", opts.Method).
		Str("url", logging.SanitizeURL(opts.URL)).
		Strs("headers", headers).
		Int("status", outcome.StatusCode).
		Int("new_connections", outcome.NewConnections).
		Dur("duration", time.Since(start)).
		Msg("HTTP call")

	return outcome
}

// loggedHeaders renders request headers as sorted lines with credentials redacted
func loggedHeaders(header http.Header) []string {
	lines := make([]string, 0, len(header))
	for name, values := range header {
		for _, v := range values {
			lines = append(lines, name+": "+logging.SanitizeHeader(name, v))
		}
	}
	slices.Sort(lines)
	return lines
}

// handleFor returns the pooled transport for the call settings, rebuilding it when they change
func (t *HTTPTransport) handleFor(opts *types.TransportOptions, s settings) (*http.Transport, error) {
	proxyURL, err := proxyURL(opts.Proxy)
	if err != nil {
		return nil, err
	}

	key := handleKey{
		verifyPeer:         opts.VerifyPeer,
		verifyHost:         opts.VerifyHost,
		disableCompression: s.disableCompression,
		disableKeepAlives:  s.disableKeepAlives,
	}
	if proxyURL != nil {
		key.proxy = proxyURL.String()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handle != nil && t.key == key {
		return t.handle, nil
	}
	if t.handle != nil {
		t.handle.CloseIdleConnections()
	}

	handle := &http.Transport{
		DialContext:           t.dialer.DialContext,
		TLSClientConfig:       t.tlsConfig(opts.VerifyPeer, opts.VerifyHost),
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    s.disableCompression,
		DisableKeepAlives:     s.disableKeepAlives,
	}
	if proxyURL != nil {
		handle.Proxy = http.ProxyURL(proxyURL)
	}

	t.handle = handle
	t.key = key
	return handle, nil
}

func (t *HTTPTransport) jarFor(path string) (*fileJar, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if jar, ok := t.jars[path]; ok {
		return jar, nil
	}
	jar, err := openFileJar(path)
	if err != nil {
		return nil, err
	}
	t.jars[path] = jar
	return jar, nil
}

// tlsConfig maps the peer/host verification flags onto a tls.Config
func (t *HTTPTransport) tlsConfig(verifyPeer, verifyHost bool) *tls.Config {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		RootCAs:    t.rootCAs,
	}

	switch {
	case !verifyPeer:
		cfg.InsecureSkipVerify = true
	case !verifyHost:
		// chain is still verified, the hostname is not
		cfg.InsecureSkipVerify = true
		cfg.VerifyPeerCertificate = verifyChain(t.rootCAs)
	}

	return cfg
}

func verifyChain(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return errors.New("tls: server presented no certificates")
		}

		certs := make([]*x509.Certificate, 0, len(rawCerts))
		for _, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return fmt.Errorf("tls: parse certificate: %w", err)
			}
			certs = append(certs, cert)
		}

		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}

		_, err := certs[0].Verify(x509.VerifyOptions{
			Roots:         roots,
			Intermediates: intermediates,
		})
		return err
	}
}

// proxyURL builds the proxy URL, or nil when no proxy is configured
func proxyURL(p types.Proxy) (*url.URL, error) {
	if !p.Enabled() {
		return nil, nil
	}

	scheme := string(p.Type)
	if scheme == "" {
		scheme = string(types.ProxyHTTP)
	}
	switch types.ProxyType(scheme) {
	case types.ProxyHTTP, types.ProxyHTTPS, types.ProxySOCKS5:
	default:
		return nil, fmt.Errorf("unsupported proxy type %q", p.Type)
	}

	host := p.Address
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if p.Port > 0 {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(p.Port))
	}

	u := &url.URL{Scheme: scheme, Host: host}
	if !p.Auth.IsZero() {
		u.User = url.UserPassword(p.Auth.Username, p.Auth.Password)
	}
	return u, nil
}

func redirectPolicy(s settings) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if !s.followLocation {
			return http.ErrUseLastResponse
		}
		if len(via) >= s.maxRedirects {
			return fmt.Errorf("stopped after %d redirects", s.maxRedirects)
		}
		return nil
	}
}

// buildRequest creates the http.Request for one call
func buildRequest(ctx context.Context, opts *types.TransportOptions) (*http.Request, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader = http.NoBody
	if len(opts.Body) > 0 {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, opts.URL, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	for _, line := range opts.Headers {
		name, value, ok := ParseHeaderLine(line)
		if !ok || value == "" {
			continue
		}
		if strings.EqualFold(name, "host") {
			req.Host = value
			continue
		}
		req.Header.Add(name, value)
	}

	if len(opts.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if opts.Cookie != "" {
		req.Header.Add("Cookie", opts.Cookie)
	}

	if !opts.Auth.IsZero() {
		req.SetBasicAuth(opts.Auth.Username, opts.Auth.Password)
	}

	return req, nil
}

// assemble reads the response and lays it out as status line, header
// block and body
func assemble(resp *http.Response) (*types.AttemptOutcome, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	buf := types.GlobalBufferPool.Get()
	defer types.GlobalBufferPool.Put(buf)

	proto := resp.Proto
	if proto == "" {
		proto = "HTTP/1.1"
	}
	fmt.Fprintf(buf, "%s %s\r\n", proto, resp.Status)
	if err := resp.Header.Write(buf); err != nil {
		return nil, fmt.Errorf("write response headers: %w", err)
	}
	buf.WriteString("\r\n")
	headerSize := buf.Len()
	buf.Write(body)

	raw := make([]byte, buf.Len())
	copy(raw, buf.Bytes())

	headers, _ := types.ParseHeaders(string(raw[:headerSize]))
	return &types.AttemptOutcome{
		StatusCode: resp.StatusCode,
		Headers:    headers,
		Raw:        raw,
		HeaderSize: headerSize,
	}, nil
}

func failure(err error) *types.AttemptOutcome {
	return &types.AttemptOutcome{Err: types.NewTransportError(err, false)}
}
