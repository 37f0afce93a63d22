package httpx

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// lockedJar is the session cookie store. It is installed as the Jar of the
// underlying http.Client, so Set-Cookie headers on every response, redirects
// included, land here. Writes take the exclusive lock, reads the shared one.
type lockedJar struct {
	mu  sync.RWMutex
	jar *cookiejar.Jar
}

var _ http.CookieJar = (*lockedJar)(nil)

func newLockedJar() (*lockedJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &lockedJar{jar: jar}, nil
}

// SetCookies implements http.CookieJar.
func (j *lockedJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *lockedJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}
