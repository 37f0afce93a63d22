package fakeremote_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go115/cloud115/internal/fakeremote"
)

func authorized(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: "UID", Value: fakeremote.DefaultUID})
	req.AddCookie(&http.Cookie{Name: "CID", Value: fakeremote.DefaultCID})
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRejectsMissingCookies(t *testing.T) {
	fake := fakeremote.New()
	rec := httptest.NewRecorder()
	fake.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?ct=ajax&ac=nav", nil))

	body := decode(t, rec)
	assert.Equal(t, false, body["state"])
	assert.EqualValues(t, 990001, body["errno"])
	assert.Equal(t, 1, fake.Calls("user.nav"))
}

func TestRoutesOfflineActions(t *testing.T) {
	fake := fakeremote.New()
	form := url.Values{"uid": {fakeremote.DefaultUserID}, "url[0]": {"https://example.com/a.iso"}}
	req := httptest.NewRequest(http.MethodPost, "/lixian/?ct=lixian&ac=add_task_urls", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	fake.ServeHTTP(rec, authorized(req))

	body := decode(t, rec)
	assert.Equal(t, true, body["state"])
	assert.Equal(t, 1, fake.Calls("tasks.add"))
	assert.Equal(t, 0, fake.Calls("tasks.list"))
	assert.Equal(t, 1, fake.TaskCount())
}

func TestFileListingRespectsPageSize(t *testing.T) {
	fake := fakeremote.New(fakeremote.WithFilePageSize(2))
	for _, name := range []string{"a", "b", "c"} {
		_, err := fake.AddFile("0", name, []byte(name))
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	fake.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/files?cid=0&offset=2&limit=100", nil)))

	body := decode(t, rec)
	assert.EqualValues(t, 3, body["count"])
	assert.EqualValues(t, 2, body["offset"])
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "c", data[0].(map[string]any)["n"])
	assert.Equal(t, []int{2}, fake.ListOffsets())
}

func TestCookieRotation(t *testing.T) {
	fake := fakeremote.New(fakeremote.WithCookieRotation())
	rec := httptest.NewRecorder()
	fake.ServeHTTP(rec, authorized(httptest.NewRequest(http.MethodGet, "/files/index_info", nil)))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "SEID", cookies[0].Name)
	assert.Equal(t, fake.SEID(), cookies[0].Value)
	assert.NotEqual(t, fakeremote.DefaultSEID, cookies[0].Value)
}

func TestApplySeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"dirs": ["media/movies"],
		"files": [
			{"path": "media/readme.txt", "content": "hello"},
			{"path": "top.bin", "base64": "AAEC"}
		],
		"tasks": [{"url": "magnet:?xt=urn:btih:abc", "status": 2, "percent": 100}]
	}`), 0o600))

	seed, err := fakeremote.LoadSeed(path)
	require.NoError(t, err)

	fake := fakeremote.New()
	require.NoError(t, fake.Apply(seed))

	media, ok := fake.Lookup("0", "media")
	require.True(t, ok)
	assert.True(t, media.IsDir)
	_, ok = fake.Lookup(media.ID, "movies")
	assert.True(t, ok)

	readme, ok := fake.Lookup(media.ID, "readme.txt")
	require.True(t, ok)
	content, ok := fake.Content(readme.ID)
	require.True(t, ok)
	assert.Equal(t, "hello", string(content))

	top, ok := fake.Lookup("0", "top.bin")
	require.True(t, ok)
	assert.EqualValues(t, 3, top.Size)
	assert.Equal(t, 1, fake.TaskCount())
}

func TestLoadSeedRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dirs": [`), 0o600))

	_, err := fakeremote.LoadSeed(path)
	assert.Error(t, err)
}
