// Package errors classifies transport failures for the retry engine
package errors

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"

	"github.com/jzx17/gohttp/pkg/types"
)

// Kind is the classification of a transport failure
type Kind int

const (
	// KindUnknown is any failure not covered by another kind
	KindUnknown Kind = iota
	// KindTimeout is the operation-timeout class, the only retryable transport failure
	KindTimeout
	// KindCanceled means the caller's context ended
	KindCanceled
	// KindConnection covers refused, reset and unreachable connections
	KindConnection
	// KindDNS is a name resolution failure
	KindDNS
	// KindTLS is a handshake or certificate failure
	KindTLS
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindConnection:
		return "connection"
	case KindDNS:
		return "dns"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// fastTimeoutCheck quickly checks errors that report Timeout() directly
func fastTimeoutCheck(err error) (bool, bool) {
	switch e := err.(type) {
	case interface{ Timeout() bool }:
		return e.Timeout(), true
	}
	return false, false
}

// Classify returns the kind of a transport failure. parent is the caller's
// context: a deadline that fires while parent is still alive belongs to the
// per-attempt timeout and is reported as KindTimeout.
func Classify(parent context.Context, err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if parent != nil && parent.Err() != nil {
		return KindCanceled
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if timeout, ok := fastTimeoutCheck(netErr); ok && timeout {
			return KindTimeout
		}
	}

	var certErr *tls.CertificateVerificationError
	var unknownAuth x509.UnknownAuthorityError
	var hostErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) || errors.As(err, &recordErr) {
		return KindTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return KindConnection
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	return KindUnknown
}

// ToTransportError converts a failed call into a TransportError. Timeouts get
// a message that states the configured limit.
func ToTransportError(parent context.Context, err error, timeout time.Duration) *types.TransportError {
	var existing *types.TransportError
	if errors.As(err, &existing) {
		return existing
	}

	kind := Classify(parent, err)
	transportErr := types.NewTransportError(err, kind == KindTimeout)
	if kind == KindTimeout && timeout > 0 {
		transportErr.Message = fmt.Sprintf("operation timed out after %d milliseconds: %v", timeout.Milliseconds(), err)
	}
	return transportErr
}
