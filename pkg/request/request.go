// Package request builds validated HTTP requests for the client
package request

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/jzx17/gohttp/pkg/types"
)

// absoluteURL matches the scheme and authority of an absolute http(s) URL
var absoluteURL = regexp.MustCompile(`^https?://[^/]+`)

// duplicateSlashes matches runs of forward slashes
var duplicateSlashes = regexp.MustCompile(`//+`)

// Request is a validated request ready for execution
type Request struct {
	method      types.Method
	url         string
	headers     map[string]string
	body        any
	retryOption types.RetryOption
}

// Option is a configuration option for Request
type Option func(*Request)

// WithRetryOption sets the per-request retry override
func WithRetryOption(option types.RetryOption) Option {
	return func(r *Request) {
		r.retryOption = option
	}
}

// WithHeader sets a single request header
func WithHeader(name, value string) Option {
	return func(r *Request) {
		r.headers[name] = value
	}
}

// New creates a request. rawURL must be an absolute http or https URL;
// repeated slashes in its path are collapsed. body may be nil, a string,
// a []byte or a structured value (map, slice, struct, url.Values).
func New(rawURL string, method types.Method, headers map[string]string, body any, opts ...Option) (*Request, error) {
	normalized, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	if method == "" {
		method = types.MethodGet
	}

	r := &Request{
		method:      strings.ToUpper(method),
		url:         normalized,
		headers:     make(map[string]string, len(headers)),
		body:        body,
		retryOption: types.UseGlobalSettings,
	}
	for name, value := range headers {
		r.headers[name] = value
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// ValidateURL checks that rawURL is an absolute http(s) URL and returns it
// with duplicate slashes in the path collapsed
func ValidateURL(rawURL string) (string, error) {
	prefix := absoluteURL.FindString(rawURL)
	if prefix == "" {
		return "", types.NewValidationError("url", rawURL, types.ErrInvalidURL)
	}

	rest := rawURL[len(prefix):]
	suffix := ""
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest, suffix = rest[:i], rest[i:]
	}
	normalized := prefix + duplicateSlashes.ReplaceAllString(rest, "/") + suffix

	if _, err := url.Parse(normalized); err != nil {
		return "", types.NewValidationError("url", rawURL, fmt.Errorf("%w: %v", types.ErrInvalidURL, err))
	}
	return normalized, nil
}

// Method returns the HTTP method
func (r *Request) Method() types.Method {
	return r.method
}

// URL returns the validated URL without any query built from the body
func (r *Request) URL() string {
	return r.url
}

// Headers returns a copy of the request headers
func (r *Request) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for name, value := range r.headers {
		out[name] = value
	}
	return out
}

// Body returns the body as given
func (r *Request) Body() any {
	return r.body
}

// RetryOption returns the per-request retry override
func (r *Request) RetryOption() types.RetryOption {
	return r.retryOption
}

// SetRetryOption replaces the per-request retry override
func (r *Request) SetRetryOption(option types.RetryOption) {
	r.retryOption = option
}

// QueryURL returns the URL to call. For GET requests with a structured
// body the body is appended as query parameters.
func (r *Request) QueryURL() (string, error) {
	if r.method != types.MethodGet || !isStructured(r.body) {
		return r.url, nil
	}

	query, err := BuildQuery(r.body)
	if err != nil {
		return "", err
	}
	if query == "" {
		return r.url, nil
	}

	sep := "?"
	if strings.Contains(r.url, "?") {
		sep = "&"
	}
	return ValidateURL(r.url + sep + query)
}

// EncodedBody returns the bytes to send. GET requests send no body when
// the body is structured; other methods form-encode structured bodies.
func (r *Request) EncodedBody() ([]byte, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(b), nil
	case []byte:
		return b, nil
	}

	if r.method == types.MethodGet {
		return nil, nil
	}
	return Form(r.body)
}
