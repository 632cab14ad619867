package testutils

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/jzx17/gohttp/pkg/types"
)

// Response builds the outcome of a call that received a response. Raw holds
// the status line, header block and body the way the HTTP transport lays it out.
func Response(status int, headers map[string]string, body string) *types.AttemptOutcome {
	var sb strings.Builder
	fmt.Fprintf(&sb, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "%s: %s\r\n", name, headers[name])
	}
	sb.WriteString("\r\n")

	headerSize := sb.Len()
	sb.WriteString(body)
	raw := []byte(sb.String())

	parsed, _ := types.ParseHeaders(string(raw[:headerSize]))
	return &types.AttemptOutcome{
		StatusCode: status,
		Headers:    parsed,
		Raw:        raw,
		HeaderSize: headerSize,
	}
}

// Failure builds the outcome of a call that failed in transport
func Failure(message string, timeout bool) *types.AttemptOutcome {
	return &types.AttemptOutcome{Err: &types.TransportError{Message: message, Timeout: timeout}}
}

// FakeTransport is a scripted types.Transport. Each Execute returns the next
// scripted outcome; the last one repeats once the script runs out.
type FakeTransport struct {
	mu       sync.Mutex
	outcomes []*types.AttemptOutcome
	calls    []types.TransportOptions
	resets   int
	hook     func(ctx context.Context, opts *types.TransportOptions)
}

// NewFakeTransport creates a fake transport returning outcomes in order
func NewFakeTransport(outcomes ...*types.AttemptOutcome) *FakeTransport {
	return &FakeTransport{outcomes: outcomes}
}

// OnExecute registers fn to run at the start of every call
func (f *FakeTransport) OnExecute(fn func(ctx context.Context, opts *types.TransportOptions)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = fn
}

// Script replaces the remaining outcomes
func (f *FakeTransport) Script(outcomes ...*types.AttemptOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = outcomes
}

// Execute implements types.Transport
func (f *FakeTransport) Execute(ctx context.Context, opts *types.TransportOptions) *types.AttemptOutcome {
	f.mu.Lock()
	f.calls = append(f.calls, *opts)
	hook := f.hook

	var outcome *types.AttemptOutcome
	switch len(f.outcomes) {
	case 0:
		outcome = Response(http.StatusOK, nil, "")
	case 1:
		outcome = f.outcomes[0]
	default:
		outcome = f.outcomes[0]
		f.outcomes = f.outcomes[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(ctx, opts)
	}

	copied := *outcome
	return &copied
}

// Reset implements types.Transport
func (f *FakeTransport) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
}

// Calls returns the options of every call made so far
func (f *FakeTransport) Calls() []types.TransportOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.TransportOptions(nil), f.calls...)
}

// CallCount returns the number of calls made so far
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Resets returns how many times Reset was called
func (f *FakeTransport) Resets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resets
}
