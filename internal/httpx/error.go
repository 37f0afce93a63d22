package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go115/cloud115/internal/envelope"
)

// HTTPError is a non-2xx response. The remote often still answers with its
// usual {state, errno, error} object on these; when it does, RemoteCode and
// RemoteMessage carry those fields.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	// HasEnvelope is set when the body is a JSON object carrying a state
	// flag, an error code or a message.
	HasEnvelope   bool
	RemoteCode    int
	RemoteMessage string
	// RetryAfter is the wait requested by a Retry-After header, or zero.
	RetryAfter time.Duration
}

func newHTTPError(resp *http.Response, body []byte, now time.Time) *HTTPError {
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), now),
	}
	_, code, msg, ok := envelope.Diagnostics(body)
	if ok {
		e.HasEnvelope = true
		e.RemoteCode = code
		e.RemoteMessage = msg
	}
	return e
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch {
	case e.HasEnvelope && e.RemoteCode != 0:
		return fmt.Sprintf("httpx: status %d: remote error %d: %s", e.StatusCode, e.RemoteCode, e.RemoteMessage)
	case e.HasEnvelope && e.RemoteMessage != "":
		return fmt.Sprintf("httpx: status %d: %s", e.StatusCode, e.RemoteMessage)
	case len(e.Body) == 0:
		return fmt.Sprintf("httpx: status %d", e.StatusCode)
	}
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 256 {
		body = body[:256] + "..."
	}
	return fmt.Sprintf("httpx: status %d: %s", e.StatusCode, body)
}

// Retryable reports whether the status is transient: 408, 429 or 5xx.
func (e *HTTPError) Retryable() bool {
	if e == nil {
		return false
	}
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500 && e.StatusCode <= 599
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms. Dates in
// the past and malformed values yield zero.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	at, err := http.ParseTime(v)
	if err != nil || !at.After(now) {
		return 0
	}
	return at.Sub(now)
}
