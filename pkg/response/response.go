// Package response holds the HTTP response returned by the client
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jzx17/gohttp/pkg/types"
)

// DefaultMaxDepth is the nesting limit applied when DecodeOptions.MaxDepth is zero
const DefaultMaxDepth = 512

// utf8BOM is stripped from bodies in lenient mode
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrMaxDepth indicates a JSON document nested deeper than allowed
var ErrMaxDepth = errors.New("maximum nesting depth exceeded")

// DecodeOptions controls best-effort JSON decoding of response bodies
type DecodeOptions struct {
	// UseNumber keeps numbers as json.Number so large integers keep their precision
	UseNumber bool `koanf:"use_number"`

	// MaxDepth rejects documents with deeper array/object nesting
	MaxDepth int `koanf:"max_depth" validate:"gte=0"`

	// Lenient strips a UTF-8 byte order mark and surrounding whitespace before decoding
	Lenient bool `koanf:"lenient"`
}

// Stats describes how the response was obtained
type Stats struct {
	// Attempts is the number of transport calls made
	Attempts int

	// Elapsed is the wall time of the whole request, waits included
	Elapsed time.Duration

	// TotalWait is the time spent waiting between attempts
	TotalWait time.Duration
}

// Response is an HTTP response. Non-2xx statuses are ordinary responses.
type Response struct {
	// StatusCode is the HTTP status code
	StatusCode int

	// Headers are the response headers
	Headers types.Headers

	// RawBody is the body exactly as received
	RawBody []byte

	// Body is the decoded JSON value, or RawBody when the body is not valid JSON
	Body any

	// Stats describes the retries behind this response
	Stats Stats

	opts DecodeOptions
}

// New creates a response and decodes raw as JSON on a best-effort basis
func New(status int, raw []byte, headers types.Headers, opts DecodeOptions) *Response {
	if headers == nil {
		headers = types.Headers{}
	}

	r := &Response{
		StatusCode: status,
		Headers:    headers,
		RawBody:    raw,
		Body:       raw,
		opts:       opts,
	}

	var decoded any
	if err := r.Decode(&decoded); err == nil {
		r.Body = decoded
	}

	return r
}

// FromOutcome creates a response from a successful attempt
func FromOutcome(outcome *types.AttemptOutcome, opts DecodeOptions) *Response {
	return New(outcome.StatusCode, outcome.Body(), outcome.Headers, opts)
}

// Decode decodes the raw body into v using the response's decode options
func (r *Response) Decode(v any) error {
	data := r.RawBody
	if r.opts.Lenient {
		data = bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM))
	}

	maxDepth := r.opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	if depth(data) > maxDepth {
		return fmt.Errorf("decode response: %w (%d)", ErrMaxDepth, maxDepth)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	if r.opts.UseNumber {
		dec.UseNumber()
	}
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decode response: trailing data after JSON value")
	}
	return nil
}

// Text returns the raw body as a string
func (r *Response) Text() string {
	return string(r.RawBody)
}

// IsSuccess reports whether the status code is 2xx
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// depth returns the deepest array/object nesting of a JSON document
func depth(data []byte) int {
	current, deepest := 0, 0
	inString, escaped := false, false

	for _, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[', '{':
			current++
			if current > deepest {
				deepest = current
			}
		case ']', '}':
			current--
		}
	}
	return deepest
}
