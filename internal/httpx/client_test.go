package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/go115/cloud115/internal/httpx"
)

func TestClientRewritesHostsOntoBaseURL(t *testing.T) {
	var gotPath, gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client, err := httpx.NewClient(httpx.WithBaseURL(srv.URL), httpx.WithUserAgent("agent/1.0"))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{
		Method: http.MethodGet,
		URL:    "https://webapi.115.com/files?aid=1",
		Query:  url.Values{"cid": {"0"}},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "/files", gotPath)
	assert.Equal(t, "aid=1&cid=0", gotQuery)
	assert.Equal(t, "agent/1.0", gotUA)
}

func TestClientStoresResponseCookies(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "SEID", Value: "rotated", Path: "/"})
			return
		}
		c, err := r.Cookie("SEID")
		if err != nil || c.Value != "rotated" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer srv.Close()

	client, err := httpx.NewClient(httpx.WithBaseURL(srv.URL))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: "https://115.com/"})
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	cookies, err := client.Cookies("https://115.com/")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "rotated", cookies[0].Value)
}

func TestSetCookiesDropsDomainWithBaseURL(t *testing.T) {
	client, err := httpx.NewClient(httpx.WithBaseURL("http://127.0.0.1:9"))
	require.NoError(t, err)

	require.NoError(t, client.SetCookies("https://115.com/", []*http.Cookie{
		{Name: "UID", Value: "u", Domain: ".115.com", Path: "/"},
	}))

	cookies, err := client.Cookies("https://webapi.115.com/files")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "UID", cookies[0].Name)

	// Copies must not alias the store.
	cookies[0].Value = "changed"
	again, err := client.Cookies("https://115.com/")
	require.NoError(t, err)
	assert.Equal(t, "u", again[0].Value)
}

func TestClientReturnsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"busy"}`))
	}))
	defer srv.Close()

	client, err := httpx.NewClient()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: srv.URL})
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, httpErr.Retryable())
	assert.True(t, httpErr.HasEnvelope)
	assert.Equal(t, "busy", httpErr.RemoteMessage)
	assert.Contains(t, httpErr.Error(), "busy")
}

func TestClientValidatesRequests(t *testing.T) {
	client, err := httpx.NewClient()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), nil)
	assert.Error(t, err)
	_, err = client.Do(context.Background(), &httpx.Request{URL: "https://115.com/"})
	assert.Error(t, err)
	_, err = client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: "/relative"})
	assert.Error(t, err)

	_, err = httpx.NewClient(httpx.WithBaseURL("not-a-url"))
	assert.Error(t, err)
}

func TestClientWaitsForRateLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	client, err := httpx.NewClient(httpx.WithRateLimiter(limiter))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: srv.URL})
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.Do(ctx, &httpx.Request{Method: http.MethodGet, URL: srv.URL})
	assert.Error(t, err)
}

func TestClientStoresCookiesFromRedirects(t *testing.T) {
	var finalSEID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/start":
			http.SetCookie(w, &http.Cookie{Name: "SEID", Value: "rotated", Path: "/"})
			http.Redirect(w, r, "/final", http.StatusFound)
		case "/final":
			if c, err := r.Cookie("SEID"); err == nil {
				finalSEID = c.Value
			}
		}
	}))
	defer srv.Close()

	client, err := httpx.NewClient(httpx.WithHTTPClient(&http.Client{Timeout: time.Second}))
	require.NoError(t, err)
	require.NoError(t, client.SetCookies(srv.URL, []*http.Cookie{{Name: "SEID", Value: "orig", Path: "/"}}))

	resp, err := client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: srv.URL + "/start"})
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "rotated", finalSEID)
	cookies, err := client.Cookies(srv.URL)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "rotated", cookies[0].Value)
}

func TestClientSendsDefaultHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	client, err := httpx.NewClient(httpx.WithHeaders(http.Header{"X-Client": {"cloud115"}}))
	require.NoError(t, err)

	resp, err := client.Do(context.Background(), &httpx.Request{
		Method: http.MethodGet,
		URL:    srv.URL,
		Header: http.Header{"X-Client": {"cli"}},
	})
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, []string{"cloud115", "cli"}, got.Values("X-Client"))
}

func TestHTTPErrorCarriesRemoteDiagnostics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"state":false,"errno":911,"error":"slow down"}`))
	}))
	defer srv.Close()

	client, err := httpx.NewClient()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: srv.URL})
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, httpErr.HasEnvelope)
	assert.Equal(t, 911, httpErr.RemoteCode)
	assert.Equal(t, "slow down", httpErr.RemoteMessage)
	assert.Equal(t, 7*time.Second, httpErr.RetryAfter)
	assert.Equal(t, "httpx: status 429: remote error 911: slow down", httpErr.Error())
}

func TestHTTPErrorWithPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "soon")
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := httpx.NewClient()
	require.NoError(t, err)

	_, err = client.Do(context.Background(), &httpx.Request{Method: http.MethodGet, URL: srv.URL})
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.False(t, httpErr.HasEnvelope)
	assert.Zero(t, httpErr.RetryAfter)
	assert.True(t, httpErr.Retryable())
	assert.Equal(t, "httpx: status 502: gateway down", httpErr.Error())
}
