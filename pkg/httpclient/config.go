package httpclient

import (
	"crypto/x509"
	"net"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/jzx17/gohttp/internal/validation"
	"github.com/jzx17/gohttp/pkg/response"
	"github.com/jzx17/gohttp/pkg/retry"
	"github.com/jzx17/gohttp/pkg/types"
)

// DefaultRequestIDHeader is the header used by WithRequestIDHeader when given an empty name
const DefaultRequestIDHeader = "X-Request-ID"

// Config contains the settings of a client. It is read-only once the client is built.
type Config struct {
	// Timeout bounds every single attempt; zero means no timeout
	Timeout time.Duration `validate:"gte=0"`

	// Retry holds the retry settings
	Retry retry.Config

	// Decode controls JSON decoding of response bodies
	Decode response.DecodeOptions

	// VerifyPeer enables certificate chain verification
	VerifyPeer bool

	// VerifyHost enables certificate hostname verification
	VerifyHost bool

	// DefaultHeaders are sent with every request unless the request sets the same header
	DefaultHeaders map[string]string

	// TransportOptions are low-level transport options, see the transport package
	TransportOptions map[string]any

	// Cookie is sent verbatim as the Cookie header
	Cookie string

	// CookieFile is where cookies are loaded from and saved to
	CookieFile string

	// Auth holds basic authentication credentials
	Auth types.Credentials

	// Proxy configures an outbound proxy
	Proxy types.Proxy

	// UserAgent replaces the default user agent
	UserAgent string

	// RequestIDHeader, when set, carries a generated request ID on every request
	RequestIDHeader string
}

// DefaultConfig returns the default client configuration: no timeout,
// retries disabled, full certificate verification.
func DefaultConfig() Config {
	return Config{
		Retry:            retry.DefaultConfig(),
		Decode:           response.DecodeOptions{MaxDepth: response.DefaultMaxDepth},
		VerifyPeer:       true,
		VerifyHost:       true,
		DefaultHeaders:   map[string]string{},
		TransportOptions: map[string]any{},
	}
}

// Validate checks the configuration constraints
func (c Config) Validate() error {
	return validation.Struct(c)
}

// normalize rewrites text fields as valid NFC UTF-8
func (c *Config) normalize() {
	c.DefaultHeaders = normalizeHeaders(c.DefaultHeaders)
	c.Cookie = normalizeText(c.Cookie)
	c.Auth = normalizeCredentials(c.Auth)
	c.Proxy.Auth = normalizeCredentials(c.Proxy.Auth)
	c.UserAgent = normalizeText(c.UserAgent)
	c.RequestIDHeader = normalizeText(c.RequestIDHeader)
}

func normalizeText(s string) string {
	if s == "" {
		return s
	}
	return norm.NFC.String(strings.ToValidUTF8(s, "\uFFFD"))
}

func normalizeCredentials(c types.Credentials) types.Credentials {
	return types.Credentials{
		Username: normalizeText(c.Username),
		Password: normalizeText(c.Password),
	}
}

func normalizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, value := range headers {
		out[normalizeText(name)] = normalizeText(value)
	}
	return out
}

// Option is a configuration option for Client
type Option func(*Client)

// WithConfig replaces the whole configuration
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		c.cfg = cfg
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.cfg.Timeout = timeout
	}
}

// WithRetries turns retries on or off globally
func WithRetries(enabled bool) Option {
	return func(c *Client) {
		c.cfg.Retry.Enabled = enabled
	}
}

// WithMaxRetries sets the number of retries after the first attempt
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.cfg.Retry.MaxRetries = n
	}
}

// WithRetryOnTimeout retries requests that failed with an operation timeout
func WithRetryOnTimeout(enabled bool) Option {
	return func(c *Client) {
		c.cfg.Retry.RetryOnTimeout = enabled
	}
}

// WithRetryInterval sets the first backoff interval
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.Retry.BaseInterval = d
	}
}

// WithMaximumRetryWaitTime caps the sum of all waits of one request
func WithMaximumRetryWaitTime(d time.Duration) Option {
	return func(c *Client) {
		c.cfg.Retry.MaxTotalWaitTime = d
	}
}

// WithBackoffFactor sets the backoff multiplier
func WithBackoffFactor(factor float64) Option {
	return func(c *Client) {
		c.cfg.Retry.BackoffFactor = factor
	}
}

// WithRetryStatusCodes replaces the statuses that warrant a retry
func WithRetryStatusCodes(codes ...int) Option {
	return func(c *Client) {
		c.cfg.Retry.StatusCodes = append([]int(nil), codes...)
	}
}

// WithRetryMethods replaces the methods retried under UseGlobalSettings
func WithRetryMethods(methods ...string) Option {
	return func(c *Client) {
		c.cfg.Retry.Methods = append([]string(nil), methods...)
	}
}

// WithDecodeOptions sets the JSON decoding options
func WithDecodeOptions(opts response.DecodeOptions) Option {
	return func(c *Client) {
		c.cfg.Decode = opts
	}
}

// WithVerifyPeer toggles certificate chain verification
func WithVerifyPeer(enabled bool) Option {
	return func(c *Client) {
		c.cfg.VerifyPeer = enabled
	}
}

// WithVerifyHost toggles certificate hostname verification
func WithVerifyHost(enabled bool) Option {
	return func(c *Client) {
		c.cfg.VerifyHost = enabled
	}
}

// WithDefaultHeaders replaces the default headers
func WithDefaultHeaders(headers map[string]string) Option {
	return func(c *Client) {
		c.cfg.DefaultHeaders = make(map[string]string, len(headers))
		for name, value := range headers {
			c.cfg.DefaultHeaders[name] = value
		}
	}
}

// WithDefaultHeader sets one default header
func WithDefaultHeader(name, value string) Option {
	return func(c *Client) {
		if c.cfg.DefaultHeaders == nil {
			c.cfg.DefaultHeaders = map[string]string{}
		}
		c.cfg.DefaultHeaders[name] = value
	}
}

// WithTransportOptions replaces the low-level transport options
func WithTransportOptions(opts map[string]any) Option {
	return func(c *Client) {
		c.cfg.TransportOptions = make(map[string]any, len(opts))
		for key, value := range opts {
			c.cfg.TransportOptions[key] = value
		}
	}
}

// WithTransportOption sets one low-level transport option
func WithTransportOption(key string, value any) Option {
	return func(c *Client) {
		if c.cfg.TransportOptions == nil {
			c.cfg.TransportOptions = map[string]any{}
		}
		c.cfg.TransportOptions[key] = value
	}
}

// WithCookie sets the Cookie header sent with every request
func WithCookie(cookie string) Option {
	return func(c *Client) {
		c.cfg.Cookie = cookie
	}
}

// WithCookieFile sets the file cookies are loaded from and saved to
func WithCookieFile(path string) Option {
	return func(c *Client) {
		c.cfg.CookieFile = path
	}
}

// WithAuth sets basic authentication credentials
func WithAuth(username, password string) Option {
	return func(c *Client) {
		c.cfg.Auth = types.Credentials{Username: username, Password: password}
	}
}

// WithProxy routes requests through a proxy
func WithProxy(address string, port int, proxyType types.ProxyType, tunnel bool) Option {
	return func(c *Client) {
		c.cfg.Proxy.Address = address
		c.cfg.Proxy.Port = port
		c.cfg.Proxy.Type = proxyType
		c.cfg.Proxy.Tunnel = tunnel
	}
}

// WithProxyAuth sets the proxy credentials
func WithProxyAuth(username, password string) Option {
	return func(c *Client) {
		c.cfg.Proxy.Auth = types.Credentials{Username: username, Password: password}
	}
}

// WithUserAgent replaces the default user agent
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.cfg.UserAgent = userAgent
	}
}

// WithRequestIDHeader sends a generated request ID in header name on
// every request that does not set it already
func WithRequestIDHeader(name string) Option {
	return func(c *Client) {
		if name == "" {
			name = DefaultRequestIDHeader
		}
		c.cfg.RequestIDHeader = name
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics registers the client's Prometheus collectors on reg
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTracerProvider sets the provider of the client's tracer
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
	}
}

// WithClock sets the clock used for retry waits
func WithClock(clock quartz.Clock) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithJitter sets the jitter added to every backoff interval
func WithJitter(jitter retry.JitterFunc) Option {
	return func(c *Client) {
		c.jitter = jitter
	}
}

// WithTransport replaces the HTTP transport
func WithTransport(t types.Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithRootCAs sets the certificate pool used for peer verification
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Client) {
		c.rootCAs = pool
	}
}

// WithDialer sets the dialer the default transport uses for new connections
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

// WithEventHandler adds a retry event handler
func WithEventHandler(handler retry.EventHandler) Option {
	return func(c *Client) {
		if handler != nil {
			c.handlers = append(c.handlers, handler)
		}
	}
}
