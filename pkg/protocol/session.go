package protocol

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/internal/httpx"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 115Browser/27.0.6"

const defaultAccept = "application/json, text/plain, */*"

type sessionOptions struct {
	httpOpts []httpx.Option
	log      zerolog.Logger
}

// Option configures a Session.
type Option func(*sessionOptions)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithHTTPClient(h))
	}
}

// WithUserAgent overrides DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithUserAgent(ua))
	}
}

// WithBaseURL sends every request to base instead of the host in its URL.
func WithBaseURL(base string) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithBaseURL(base))
	}
}

// WithRateLimiter throttles outgoing requests.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithRateLimiter(l))
	}
}

// WithTimeout bounds each round trip of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithTimeout(d))
	}
}

// WithHeaders adds default headers to every request, after the session's
// own Accept header.
func WithHeaders(h http.Header) Option {
	return func(o *sessionOptions) {
		o.httpOpts = append(o.httpOpts, httpx.WithHeaders(h))
	}
}

// WithLogger attaches a logger. Requests are logged at debug level and
// remote rejections at warn level.
func WithLogger(l zerolog.Logger) Option {
	return func(o *sessionOptions) {
		o.log = l
		o.httpOpts = append(o.httpOpts, httpx.WithLogger(l))
	}
}

// Session holds the per-login connection state shared by every spec
// execution. It is safe for concurrent use: cookie updates are serialized,
// network calls are not.
type Session struct {
	client *httpx.Client
	log    zerolog.Logger
}

// NewSession creates a Session with an empty cookie store.
func NewSession(opts ...Option) (*Session, error) {
	o := &sessionOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	httpOpts := append([]httpx.Option{
		httpx.WithUserAgent(DefaultUserAgent),
		httpx.WithHeaders(http.Header{"Accept": {defaultAccept}}),
	}, o.httpOpts...)
	client, err := httpx.NewClient(httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("protocol: init http client: %w", err)
	}
	return &Session{client: client, log: o.log}, nil
}

// UserAgent returns the User-Agent presented to the remote.
func (s *Session) UserAgent() string {
	return s.client.UserAgent()
}

// ImportCookies stores cookies scoped to rawURL.
func (s *Session) ImportCookies(rawURL string, cookies []*http.Cookie) error {
	if err := s.client.SetCookies(rawURL, cookies); err != nil {
		return fmt.Errorf("protocol: import cookies: %w", err)
	}
	return nil
}

// ExportCookies returns a detached copy of the cookies the session would
// send to rawURL. Later cookie rotation does not affect the copy.
func (s *Session) ExportCookies(rawURL string) ([]*http.Cookie, error) {
	cookies, err := s.client.Cookies(rawURL)
	if err != nil {
		return nil, fmt.Errorf("protocol: export cookies: %w", err)
	}
	return cookies, nil
}

// CookieHeader renders the cookies for rawURL as a Cookie header value.
func (s *Session) CookieHeader(rawURL string) (string, error) {
	cookies, err := s.ExportCookies(rawURL)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; "), nil
}

// Execute runs spec and returns its decoded payload.
func Execute[T any](ctx context.Context, s *Session, spec Spec[T]) (T, error) {
	var zero T
	if s == nil || s.client == nil {
		return zero, &UsageError{Op: "execute", Err: errors.New("session is nil")}
	}
	if spec == nil {
		return zero, &UsageError{Op: "execute", Err: errors.New("spec is nil")}
	}
	req, err := spec.Request()
	if err != nil {
		return zero, err
	}

	body, err := s.roundTrip(ctx, req)
	if err != nil {
		return zero, err
	}

	var env *envelope.Envelope
	if p, ok := any(spec).(EnvelopeParser); ok {
		env, err = p.ParseEnvelope(body)
	} else {
		env, err = parseStateEnvelope(body)
	}
	if err != nil {
		remoteErr := asRemote(err, body)
		remoteErr.URL = req.URL
		s.log.Warn().
			Str("url", req.URL).
			Int("code", remoteErr.Code).
			Str("message", remoteErr.Message).
			Msg("remote rejected request")
		return zero, remoteErr
	}

	out, err := spec.Decode(env)
	if err != nil {
		remoteErr := asRemote(err, body)
		remoteErr.URL = req.URL
		return zero, remoteErr
	}
	return out, nil
}

func (s *Session) roundTrip(ctx context.Context, req *Request) ([]byte, error) {
	if req == nil {
		return nil, &UsageError{Op: "execute", Err: errors.New("spec produced no request")}
	}
	hreq := &httpx.Request{
		Method: req.Method,
		URL:    req.URL,
		Query:  req.Query,
	}
	if req.Form != nil {
		hreq.Body = strings.NewReader(req.Form.Encode())
		hreq.Header = http.Header{"Content-Type": {"application/x-www-form-urlencoded"}}
	}

	resp, err := s.client.Do(ctx, hreq)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	body, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	return body, nil
}

func parseStateEnvelope(body []byte) (*envelope.Envelope, error) {
	env, err := envelope.Parse(body)
	if err != nil {
		return nil, err
	}
	if !env.State {
		return nil, &RemoteProtocolError{Code: env.Code, Message: env.Message}
	}
	return env, nil
}

func asRemote(err error, body []byte) *RemoteProtocolError {
	var remoteErr *RemoteProtocolError
	if errors.As(err, &remoteErr) {
		cp := *remoteErr
		if cp.Body == nil {
			cp.Body = body
		}
		return &cp
	}
	return &RemoteProtocolError{Message: err.Error(), Body: body}
}
