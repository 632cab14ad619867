// Package types defines core interfaces and types for the HTTP client
package types

import (
	"context"
	"time"
)

// Method is an HTTP request method
type Method = string

// HTTP methods supported by the client
const (
	MethodGet     Method = "GET"
	MethodHead    Method = "HEAD"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodConnect Method = "CONNECT"
	MethodTrace   Method = "TRACE"
)

// RetryOption is the per-request retry override
type RetryOption int

const (
	// UseGlobalSettings retries only when retries are enabled globally and the
	// method is in the retryable method list
	UseGlobalSettings RetryOption = iota
	// EnableRetry retries whenever retries are enabled globally, ignoring the method list
	EnableRetry
	// DisableRetry never retries
	DisableRetry
)

// String returns the string representation of RetryOption
func (o RetryOption) String() string {
	switch o {
	case UseGlobalSettings:
		return "UseGlobalSettings"
	case EnableRetry:
		return "EnableRetry"
	case DisableRetry:
		return "DisableRetry"
	default:
		return "Unknown"
	}
}

// ParseRetryOption parses the names accepted in configuration files
func ParseRetryOption(s string) (RetryOption, bool) {
	switch s {
	case "", "global", "use_global_settings", "UseGlobalSettings":
		return UseGlobalSettings, true
	case "enable", "enable_retry", "EnableRetry":
		return EnableRetry, true
	case "disable", "disable_retry", "DisableRetry":
		return DisableRetry, true
	default:
		return UseGlobalSettings, false
	}
}

// AttemptOutcome is the result of exactly one transport call.
// Either Err is set, or StatusCode and Headers describe the received response.
type AttemptOutcome struct {
	// StatusCode is the HTTP status code (zero when Err is set)
	StatusCode int

	// Headers are the parsed response headers
	Headers Headers

	// Raw is the raw response: header block followed by body
	Raw []byte

	// HeaderSize is the offset in Raw where the body starts
	HeaderSize int

	// Err is the transport-level failure, if any
	Err *TransportError

	// NewConnections is the number of connections established (not reused) by this call
	NewConnections int
}

// Succeeded reports whether the call reached the server
func (o *AttemptOutcome) Succeeded() bool {
	return o != nil && o.Err == nil
}

// Body returns the raw body part of the response
func (o *AttemptOutcome) Body() []byte {
	if o == nil || o.HeaderSize > len(o.Raw) {
		return nil
	}
	return o.Raw[o.HeaderSize:]
}

// Transport performs exactly one blocking network call per Execute.
// Implementations own the underlying connection handle and reuse it across calls.
type Transport interface {
	// Execute performs one call with fully resolved options
	Execute(ctx context.Context, opts *TransportOptions) *AttemptOutcome

	// Reset drops pooled connections and rebuilds the handle
	Reset()
}

// ProxyType selects the proxy protocol
type ProxyType string

const (
	// ProxyHTTP is a plain HTTP proxy
	ProxyHTTP ProxyType = "http"
	// ProxyHTTPS is an HTTP proxy reached over TLS
	ProxyHTTPS ProxyType = "https"
	// ProxySOCKS5 is a SOCKS5 proxy
	ProxySOCKS5 ProxyType = "socks5"
)

// Credentials holds basic authentication credentials
type Credentials struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// IsZero reports whether no username is configured
func (c Credentials) IsZero() bool {
	return c.Username == ""
}

// Proxy configures the proxy used by the transport
type Proxy struct {
	Address string      `koanf:"address"`
	Port    int         `koanf:"port" validate:"gte=0,lte=65535"`
	Type    ProxyType   `koanf:"type" validate:"omitempty,oneof=http https socks5"`
	Tunnel  bool        `koanf:"tunnel"`
	Auth    Credentials `koanf:"auth"`
}

// Enabled reports whether a proxy address is configured
func (p Proxy) Enabled() bool {
	return p.Address != ""
}

// TransportOptions are the fully resolved options for one transport call
type TransportOptions struct {
	// URL is the absolute request URL, with any GET query already appended
	URL string

	// Method is the HTTP method
	Method Method

	// Headers are formatted "name: value" lines; an empty value suppresses the header
	Headers []string

	// Body is the raw request body
	Body []byte

	// VerifyPeer enables certificate chain verification
	VerifyPeer bool

	// VerifyHost enables certificate hostname verification
	VerifyHost bool

	// Cookie is sent verbatim as the Cookie header when non-empty
	Cookie string

	// CookieFile is a path where cookies are loaded from and saved to
	CookieFile string

	// Auth holds basic authentication credentials
	Auth Credentials

	// Proxy configures an outbound proxy
	Proxy Proxy

	// Timeout bounds a single call; zero means no timeout
	Timeout time.Duration

	// Raw holds low-level transport options, merged over the computed defaults
	Raw map[string]any
}

// Result defines the result of asynchronous execution
type Result[R any] struct {
	// Value is the execution result
	Value R

	// Error is the execution error
	Error error

	// Duration is the execution time
	Duration time.Duration
}
