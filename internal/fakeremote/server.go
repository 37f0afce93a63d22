// Package fakeremote is an in-memory stand-in for the remote service. It
// serves every remote host from one address, so clients reach it through
// protocol.WithBaseURL. It backs the sandbox command and the facade tests.
package fakeremote

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Default account served by the fake.
const (
	DefaultUID      = "1001_A1_1700000000"
	DefaultCID      = "fake-cid"
	DefaultSEID     = "fake-seid"
	DefaultUserID   = "1001"
	DefaultUserName = "sandbox"
	DefaultUserKey  = "fake-user-key"
	DefaultQuota    = int64(2) << 40
)

// Option configures a Server.
type Option func(*Server)

// WithFilePageSize caps the number of entries returned per file listing.
func WithFilePageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.filePageSize = n
		}
	}
}

// WithTaskPageSize sets the number of tasks per listing page.
func WithTaskPageSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.taskPageSize = n
		}
	}
}

// WithCookieRotation makes every authenticated response set a fresh SEID.
func WithCookieRotation() Option {
	return func(s *Server) {
		s.rotate = true
	}
}

// WithSignCheck makes instant uploads answer a range sign check first.
func WithSignCheck() Option {
	return func(s *Server) {
		s.signCheck = true
	}
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) {
		s.latency = d
	}
}

// WithFailures answers a fraction of requests with the given HTTP status.
func WithFailures(rate float64, code int) Option {
	return func(s *Server) {
		s.failRate = rate
		if code == 0 {
			code = http.StatusInternalServerError
		}
		s.failCode = code
	}
}

// WithLogger logs each handled request at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// Server implements the remote endpoints over an in-memory store.
type Server struct {
	router *mux.Router
	log    zerolog.Logger

	filePageSize int
	taskPageSize int
	rotate       bool
	signCheck    bool
	latency      time.Duration
	failRate     float64
	failCode     int

	mu      sync.Mutex
	store   *store
	calls   map[string]int
	offsets []int
	pages   []int
	seid    string
}

// New returns a Server holding an empty root directory.
func New(opts ...Option) *Server {
	s := &Server{
		log:          zerolog.Nop(),
		filePageSize: 1150,
		taskPageSize: 30,
		store:        newStore(),
		calls:        make(map[string]int),
		seid:         DefaultSEID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.Handle("/", s.endpoint("user.nav", true, s.handleNav)).Methods(http.MethodGet).Queries("ac", "nav")
	r.Handle("/app/uploadinfo", s.endpoint("user.uploadinfo", true, s.handleUploadInfo)).Methods(http.MethodGet)

	lixian := map[string]struct {
		name    string
		handler http.HandlerFunc
	}{
		"task_lists":    {"tasks.list", s.handleTaskList},
		"add_task_urls": {"tasks.add", s.handleTaskAdd},
		"task_del":      {"tasks.delete", s.handleTaskDelete},
		"task_clear":    {"tasks.clear", s.handleTaskClear},
	}
	for action, ep := range lixian {
		r.Handle("/lixian/", s.endpoint(ep.name, true, ep.handler)).Methods(http.MethodPost).Queries("ac", action)
	}

	r.Handle("/files", s.endpoint("files.list", true, s.handleFileList)).Methods(http.MethodGet)
	r.Handle("/files/index_info", s.endpoint("files.space", true, s.handleSpace)).Methods(http.MethodGet)
	r.Handle("/files/add", s.endpoint("files.mkdir", true, s.handleMakeDir)).Methods(http.MethodPost)
	r.Handle("/files/move", s.endpoint("files.move", true, s.handleMove)).Methods(http.MethodPost)
	r.Handle("/files/batch_rename", s.endpoint("files.rename", true, s.handleRename)).Methods(http.MethodPost)
	r.Handle("/rb/delete", s.endpoint("files.delete", true, s.handleDelete)).Methods(http.MethodPost)
	r.Handle("/files/download", s.endpoint("files.download", true, s.handleDownload)).Methods(http.MethodGet)
	r.Handle("/dl/{pickcode}", s.endpoint("files.fetch", true, s.handleFetch)).Methods(http.MethodGet)

	r.Handle("/4.0/initupload.php", s.endpoint("upload.init", true, s.handleUploadInit)).Methods(http.MethodPost)
	r.Handle("/3.0/gettoken.php", s.endpoint("upload.token", true, s.handleUploadToken)).Methods(http.MethodGet)
	// Object storage, addressed path-style as the OSS SDK does for IP hosts.
	r.Handle("/{bucket}/{object:.+}", s.endpoint("oss.put", false, s.handleObjectPut)).Methods(http.MethodPut)

	return r
}

// endpoint wraps a handler with call counting, fault injection and, when
// auth is set, the login check.
func (s *Server) endpoint(name string, auth bool, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		s.mu.Unlock()
		s.log.Debug().Str("endpoint", name).Str("method", r.Method).Str("query", r.URL.RawQuery).Msg("fake remote request")

		if s.latency > 0 {
			time.Sleep(s.latency)
		}
		if s.failRate > 0 && rand.Float64() < s.failRate {
			http.Error(w, "failure injected", s.failCode)
			return
		}
		if auth && !s.authorized(r) {
			writeJSON(w, map[string]any{"state": false, "errno": 990001, "error": "login required"})
			return
		}
		if auth && s.rotate {
			s.mu.Lock()
			s.seid = strings.ReplaceAll(uuid.NewString(), "-", "")
			seid := s.seid
			s.mu.Unlock()
			http.SetCookie(w, &http.Cookie{Name: "SEID", Value: seid, Path: "/"})
		}
		next(w, r)
	})
}

func (s *Server) authorized(r *http.Request) bool {
	uid, err := r.Cookie("UID")
	if err != nil || uid.Value != DefaultUID {
		return false
	}
	cid, err := r.Cookie("CID")
	return err == nil && cid.Value == DefaultCID
}

// Calls returns how many requests reached the named endpoint, such as
// "files.list" or "upload.token".
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// ListOffsets returns the offsets requested by file listings, in order.
func (s *Server) ListOffsets() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.offsets...)
}

// TaskPages returns the pages requested by task listings, in order.
func (s *Server) TaskPages() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pages...)
}

// SEID returns the session cookie value most recently issued.
func (s *Server) SEID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seid
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func fail(w http.ResponseWriter, errno int, msg string) {
	writeJSON(w, map[string]any{"state": false, "errno": errno, "error": msg})
}

func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
