package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single round trip when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used by the helper. The client is
// copied and its Jar replaced by the Client's cookie store.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithHeaders assigns default headers added to every request. Per-request
// headers are added after them.
func WithHeaders(h http.Header) Option {
	return func(c *Client) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// WithBaseURL redirects every request to base, keeping the request path and
// query. It is meant for sandboxes and tests that serve all remote hosts from
// a single address.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.rawBase = strings.TrimSpace(base)
	}
}

// WithRateLimiter makes every request wait for a token from l.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger attaches a logger for per-request debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithTimeout overrides the round trip timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client wraps http.Client with a lock-guarded cookie store, default headers
// and optional host rewriting.
type Client struct {
	httpClient *http.Client
	headers    http.Header
	userAgent  string
	rawBase    string
	baseURL    *url.URL
	limiter    *rate.Limiter
	timeout    time.Duration
	log        zerolog.Logger
	jar        *lockedJar
}

// Request describes a single outbound request.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   io.Reader
}

// NewClient creates a Client with an empty cookie store.
func NewClient(opts ...Option) (*Client, error) {
	jar, err := newLockedJar()
	if err != nil {
		return nil, fmt.Errorf("httpx: create cookie jar: %w", err)
	}

	c := &Client{
		headers: make(http.Header),
		log:     zerolog.Nop(),
		timeout: DefaultTimeout,
		jar:     jar,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	} else {
		cp := *c.httpClient
		c.httpClient = &cp
	}
	c.httpClient.Jar = c.jar
	if c.rawBase != "" {
		parsed, err := url.Parse(c.rawBase)
		if err != nil {
			return nil, fmt.Errorf("httpx: invalid base URL: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("httpx: base URL %q must be absolute", c.rawBase)
		}
		c.baseURL = parsed
	}
	return c, nil
}

// UserAgent returns the User-Agent attached to outgoing requests.
func (c *Client) UserAgent() string {
	return c.userAgent
}

// Do executes the provided request and returns the response, or an HTTPError
// for non-2xx statuses. Cookies set by the response, and by any redirect
// followed on the way, are stored before Do returns.
func (c *Client) Do(ctx context.Context, req *Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("httpx: request is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if req.Method == "" {
		return nil, errors.New("httpx: HTTP method is required")
	}

	target, err := c.buildURL(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), req.Body)
	if err != nil {
		return nil, err
	}
	httpReq.Header = cloneHeader(c.headers)
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if c.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.log.Debug().
			Str("method", req.Method).
			Str("url", target.Redacted()).
			Dur("elapsed", time.Since(start)).
			Err(err).
			Msg("http request failed")
		return nil, err
	}
	c.log.Debug().
		Str("method", req.Method).
		Str("url", target.Redacted()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("http request")

	if resp.StatusCode >= 400 {
		return nil, c.handleError(resp)
	}
	return resp, nil
}

// Cookies returns copies of the cookies that would be sent to rawURL.
func (c *Client) Cookies(rawURL string) ([]*http.Cookie, error) {
	target, err := c.buildURL(rawURL, nil)
	if err != nil {
		return nil, err
	}
	src := c.jar.Cookies(target)
	out := make([]*http.Cookie, 0, len(src))
	for _, cookie := range src {
		cp := *cookie
		out = append(out, &cp)
	}
	return out, nil
}

// SetCookies stores cookies as if they had been set by a response from rawURL.
// With a base URL in effect every remote host collapses onto the base host,
// so domain attributes are dropped.
func (c *Client) SetCookies(rawURL string, cookies []*http.Cookie) error {
	target, err := c.buildURL(rawURL, nil)
	if err != nil {
		return err
	}
	if c.baseURL != nil {
		rebased := make([]*http.Cookie, 0, len(cookies))
		for _, cookie := range cookies {
			cp := *cookie
			cp.Domain = ""
			rebased = append(rebased, &cp)
		}
		cookies = rebased
	}
	c.jar.SetCookies(target, cookies)
	return nil
}

func (c *Client) buildURL(raw string, q url.Values) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("httpx: request URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("httpx: invalid request URL: %w", err)
	}
	if c.baseURL != nil {
		u.Scheme = c.baseURL.Scheme
		u.Host = c.baseURL.Host
		if prefix := strings.TrimRight(c.baseURL.Path, "/"); prefix != "" {
			u.Path = prefix + u.Path
		}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpx: request URL %q must be absolute", raw)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, values := range q {
			for _, v := range values {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u, nil
}

func (c *Client) handleError(resp *http.Response) error {
	defer closeBody(resp.Body)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpx: read error body: %w", err)
	}
	return newHTTPError(resp, body, time.Now())
}

// ReadAllAndClose drains the reader and ensures it is closed.
func ReadAllAndClose(rc io.ReadCloser) ([]byte, error) {
	defer closeBody(rc)
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func closeBody(rc io.ReadCloser) {
	if rc != nil {
		_ = rc.Close()
	}
}

func cloneHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for k, values := range src {
		vCopy := make([]string, len(values))
		copy(vCopy, values)
		dst[k] = vCopy
	}
	return dst
}
