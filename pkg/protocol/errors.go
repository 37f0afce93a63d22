package protocol

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go115/cloud115/internal/httpx"
)

// ErrNotSeekable is wrapped by a UsageError when an upload source cannot be
// re-read from its start.
var ErrNotSeekable = errors.New("protocol: source is not seekable")

// TransportError reports a failure to obtain a response: connection, timeout,
// TLS or a non-2xx HTTP status.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("protocol: transport error: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status when the remote answered with a non-2xx
// response, or zero.
func (e *TransportError) StatusCode() int {
	var httpErr *httpx.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}

// RetryAfter returns the wait the remote asked for with a Retry-After header
// on a non-2xx response, or zero.
func (e *TransportError) RetryAfter() time.Duration {
	if e == nil {
		return 0
	}
	var httpErr *httpx.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.RetryAfter
	}
	return 0
}

// RemoteCode returns the error code the remote put in the body of a non-2xx
// response, or zero.
func (e *TransportError) RemoteCode() int {
	if e == nil {
		return 0
	}
	var httpErr *httpx.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.RemoteCode
	}
	return 0
}

// Retryable reports whether the failure looks transient: a network timeout,
// a 408/429 or a 5xx status.
func (e *TransportError) Retryable() bool {
	if e == nil {
		return false
	}
	var httpErr *httpx.HTTPError
	if errors.As(e.Err, &httpErr) {
		return httpErr.Retryable()
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// RemoteProtocolError reports that the remote answered but flagged the call
// as failed. Code and Message are passed through uninterpreted.
type RemoteProtocolError struct {
	URL     string
	Code    int
	Message string
	Body    []byte
}

func (e *RemoteProtocolError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = "request rejected"
	}
	if e.Code != 0 {
		return fmt.Sprintf("protocol: remote error %d: %s", e.Code, msg)
	}
	return fmt.Sprintf("protocol: remote error: %s", msg)
}

// UsageError reports a violated local precondition. It never involves the
// network.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// IsRemote reports whether err is (or wraps) a RemoteProtocolError.
func IsRemote(err error) bool {
	var remoteErr *RemoteProtocolError
	return errors.As(err, &remoteErr)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsUsage reports whether err is (or wraps) a UsageError.
func IsUsage(err error) bool {
	var usageErr *UsageError
	return errors.As(err, &usageErr)
}
