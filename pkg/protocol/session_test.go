package protocol_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/pkg/protocol"
)

type userInfo struct {
	UserID   envelope.Int64 `json:"user_id"`
	UserName string         `json:"user_name"`
}

type userSpec struct {
	url string
}

func (s userSpec) Request() (*protocol.Request, error) {
	return protocol.Get(s.url, nil), nil
}

func (s userSpec) Decode(env *envelope.Envelope) (userInfo, error) {
	var out userInfo
	err := env.Decode(&out)
	return out, err
}

type tokenSpec struct {
	url string
}

func (s tokenSpec) Request() (*protocol.Request, error) {
	return protocol.Get(s.url, nil), nil
}

func (s tokenSpec) ParseEnvelope(body []byte) (*envelope.Envelope, error) {
	var status struct {
		StatusCode string `json:"StatusCode"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, err
	}
	if status.StatusCode != "200" {
		return nil, &protocol.RemoteProtocolError{Message: "status " + status.StatusCode}
	}
	return &envelope.Envelope{State: true, Payload: body, Raw: body}, nil
}

func (s tokenSpec) Decode(env *envelope.Envelope) (string, error) {
	var out struct {
		AccessKeyID string `json:"AccessKeyId"`
	}
	err := env.Decode(&out)
	return out.AccessKeyID, err
}

type formSpec struct {
	url  string
	name string
}

func (s formSpec) Request() (*protocol.Request, error) {
	return protocol.PostForm(s.url, nil, map[string][]string{"name": {s.name}}), nil
}

func (s formSpec) Decode(env *envelope.Envelope) (string, error) {
	var out struct {
		Echo string `json:"echo"`
	}
	err := env.Decode(&out)
	return out.Echo, err
}

func newSession(t *testing.T, opts ...protocol.Option) *protocol.Session {
	t.Helper()
	s, err := protocol.NewSession(opts...)
	require.NoError(t, err)
	return s
}

func TestExecuteStripsBothEnvelopeShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/wrapped":
			io.WriteString(w, `{"state":true,"data":{"user_id":"101","user_name":"alice"}}`)
		case "/flat":
			io.WriteString(w, `{"state":true,"user_id":101,"user_name":"alice"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := newSession(t)
	ctx := context.Background()

	wrapped, err := protocol.Execute[userInfo](ctx, s, userSpec{url: srv.URL + "/wrapped"})
	require.NoError(t, err)
	flat, err := protocol.Execute[userInfo](ctx, s, userSpec{url: srv.URL + "/flat"})
	require.NoError(t, err)

	assert.Equal(t, wrapped, flat)
	assert.EqualValues(t, 101, flat.UserID)
	assert.Equal(t, "alice", flat.UserName)
}

func TestExecuteRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"state":false,"errno":990001,"error":"login expired"}`)
	}))
	defer srv.Close()

	_, err := protocol.Execute[userInfo](context.Background(), newSession(t), userSpec{url: srv.URL})
	require.Error(t, err)

	var remoteErr *protocol.RemoteProtocolError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, 990001, remoteErr.Code)
	assert.Equal(t, "login expired", remoteErr.Message)
	assert.Equal(t, srv.URL, remoteErr.URL)
	assert.NotEmpty(t, remoteErr.Body)
	assert.False(t, protocol.IsTransport(err))
}

func TestExecuteMalformedBodyIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>maintenance</html>`)
	}))
	defer srv.Close()

	_, err := protocol.Execute[userInfo](context.Background(), newSession(t), userSpec{url: srv.URL})
	assert.True(t, protocol.IsRemote(err), "got %v", err)
}

func TestExecuteHTTPStatusIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := protocol.Execute[userInfo](context.Background(), newSession(t), userSpec{url: srv.URL})
	var transportErr *protocol.TransportError
	require.True(t, errors.As(err, &transportErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode())
	assert.True(t, transportErr.Retryable())
}

func TestExecuteConnectionFailureIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := protocol.Execute[userInfo](context.Background(), newSession(t), userSpec{url: addr})
	assert.True(t, protocol.IsTransport(err), "got %v", err)
	assert.False(t, protocol.IsRemote(err))
}

func TestExecuteUsesCustomEnvelopeParser(t *testing.T) {
	var status atomic.Value
	status.Store("200")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"StatusCode":%q,"AccessKeyId":"STS.key"}`, status.Load().(string))
	}))
	defer srv.Close()

	s := newSession(t)
	key, err := protocol.Execute[string](context.Background(), s, tokenSpec{url: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "STS.key", key)

	status.Store("403")
	_, err = protocol.Execute[string](context.Background(), s, tokenSpec{url: srv.URL})
	var remoteErr *protocol.RemoteProtocolError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, "status 403", remoteErr.Message)
}

func TestExecuteSendsFormAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "cloud115-test/1.0", r.Header.Get("User-Agent"))
		fmt.Fprintf(w, `{"state":true,"echo":%q}`, r.PostForm.Get("name"))
	}))
	defer srv.Close()

	s := newSession(t, protocol.WithUserAgent("cloud115-test/1.0"))
	assert.Equal(t, "cloud115-test/1.0", s.UserAgent())

	echo, err := protocol.Execute[string](context.Background(), s, formSpec{url: srv.URL, name: "report.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", echo)
}

func TestCookiesRefreshFromResponses(t *testing.T) {
	var rotation atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := rotation.Add(1)
		if c, err := r.Cookie("UID"); err != nil || c.Value != "1001" {
			http.Error(w, "missing credential", http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "SEID", Value: fmt.Sprintf("seid-%d", n), Path: "/"})
		io.WriteString(w, `{"state":true,"data":{"user_id":1001}}`)
	}))
	defer srv.Close()

	s := newSession(t)
	require.NoError(t, s.ImportCookies(srv.URL, []*http.Cookie{{Name: "UID", Value: "1001", Path: "/"}}))

	_, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: srv.URL + "/a"})
	require.NoError(t, err)

	first, err := s.ExportCookies(srv.URL + "/download")
	require.NoError(t, err)
	assert.Equal(t, "seid-1", cookieValue(first, "SEID"))

	header, err := s.CookieHeader(srv.URL + "/download")
	require.NoError(t, err)
	assert.Contains(t, header, "UID=1001")
	assert.Contains(t, header, "SEID=seid-1")
	assert.Contains(t, header, "; ")

	_, err = protocol.Execute[userInfo](context.Background(), s, userSpec{url: srv.URL + "/b"})
	require.NoError(t, err)

	second, err := s.ExportCookies(srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "seid-2", cookieValue(second, "SEID"))
	assert.Equal(t, "seid-1", cookieValue(first, "SEID"), "exported cookies must be detached")
}

func TestConcurrentExecuteWithCookieRotation(t *testing.T) {
	var counter atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "SEID", Value: fmt.Sprint(counter.Add(1)), Path: "/"})
		io.WriteString(w, `{"state":true,"user_id":1}`)
	}))
	defer srv.Close()

	s := newSession(t)
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: srv.URL}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Execute: %v", err)
	}

	cookies, err := s.ExportCookies(srv.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, cookieValue(cookies, "SEID"))
	assert.EqualValues(t, 32, counter.Load())
}

func TestBaseURLRewritesRemoteHosts(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path + "?" + r.URL.RawQuery)
		io.WriteString(w, `{"state":true,"user_id":5}`)
	}))
	defer srv.Close()

	s := newSession(t, protocol.WithBaseURL(srv.URL))
	require.NoError(t, s.ImportCookies("https://115.com/", []*http.Cookie{{Name: "CID", Value: "c", Domain: ".115.com", Path: "/"}}))

	_, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: "https://webapi.115.com/files?aid=1"})
	require.NoError(t, err)
	assert.Equal(t, "/files?aid=1", gotPath.Load())

	cookies, err := s.ExportCookies("https://webapi.115.com/files")
	require.NoError(t, err)
	assert.Equal(t, "c", cookieValue(cookies, "CID"))
}

func TestNewSessionRejectsRelativeBaseURL(t *testing.T) {
	_, err := protocol.NewSession(protocol.WithBaseURL("not-absolute"))
	assert.Error(t, err)
}

func TestExecuteNilSession(t *testing.T) {
	_, err := protocol.Execute[userInfo](context.Background(), nil, userSpec{url: "http://example.invalid"})
	assert.True(t, protocol.IsUsage(err))
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestCookiesRefreshAcrossRedirects(t *testing.T) {
	var finalSEID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a":
			http.SetCookie(w, &http.Cookie{Name: "SEID", Value: "rotated", Path: "/"})
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/final":
			if c, err := r.Cookie("SEID"); err == nil {
				finalSEID = c.Value
			}
			io.WriteString(w, `{"state":true,"data":{"user_id":1001}}`)
		}
	}))
	defer srv.Close()

	s := newSession(t, protocol.WithBaseURL(srv.URL))
	require.NoError(t, s.ImportCookies("https://115.com/", []*http.Cookie{
		{Name: "SEID", Value: "orig", Domain: ".115.com", Path: "/"},
	}))

	_, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: "https://webapi.115.com/a"})
	require.NoError(t, err)
	assert.Equal(t, "rotated", finalSEID)

	header, err := s.CookieHeader("https://115.com/")
	require.NoError(t, err)
	assert.Equal(t, "SEID=rotated", header)
}

func TestSessionSendsDefaultHeaders(t *testing.T) {
	var accept, referer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		referer = r.Header.Get("Referer")
		io.WriteString(w, `{"state":true,"data":{}}`)
	}))
	defer srv.Close()

	s := newSession(t, protocol.WithHeaders(http.Header{"Referer": {"https://115.com/"}}))
	_, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "application/json, text/plain, */*", accept)
	assert.Equal(t, "https://115.com/", referer)
}

func TestTransportErrorExposesRemoteHints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"state":false,"errno":911,"error":"slow down"}`)
	}))
	defer srv.Close()

	s := newSession(t)
	_, err := protocol.Execute[userInfo](context.Background(), s, userSpec{url: srv.URL})
	var transportErr *protocol.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusTooManyRequests, transportErr.StatusCode())
	assert.Equal(t, 911, transportErr.RemoteCode())
	assert.Equal(t, 3*time.Second, transportErr.RetryAfter())
	assert.True(t, transportErr.Retryable())
}
